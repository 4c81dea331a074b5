package handlers

import (
	"net/http"

	"github.com/wincvex/console/internal/database"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err == nil {
			if err := sqlDB.Ping(); err == nil {
				dbStatus = "connected"
			}
		}
	}

	feedStatus := "stopped"
	subscribers := 0
	if LogFeed != nil {
		feedStatus = "running"
		subscribers = LogFeed.Subscribers()
	}

	status := "healthy"
	if dbStatus != "connected" || Agents == nil {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          status,
		"database":        dbStatus,
		"log_feed":        feedStatus,
		"log_subscribers": subscribers,
	})
}
