package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wincvex/console/internal/config"
)

var DB *gorm.DB

var (
	ErrAgentNotFound        = errors.New("unknown agent")
	ErrUnknownVulnerability = errors.New("unknown vulnerability")
)

// Init opens the database at the configured path and migrates the schema.
func Init() error {
	db, err := Open(config.Cfg.DBPath())
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open opens and migrates a sqlite database. ":memory:" is accepted.
func Open(dbPath string) (*gorm.DB, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	} else if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&Agent{}, &VulnerabilityFlag{}, &CommandRecord{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return db, nil
}

func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// EnsureAgent creates the agent and any missing flags with their default
// values. Existing flag values are left alone so toggles survive restarts.
func EnsureAgent(agentID, displayName string, sortOrder int, defaults map[string]bool) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		var a Agent
		err := tx.Where("agent_id = ?", agentID).First(&a).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			a = Agent{AgentID: agentID, DisplayName: displayName, SortOrder: sortOrder}
			if err := tx.Create(&a).Error; err != nil {
				return fmt.Errorf("create agent %s: %w", agentID, err)
			}
		case err != nil:
			return fmt.Errorf("load agent %s: %w", agentID, err)
		default:
			if err := tx.Model(&a).Updates(map[string]interface{}{
				"display_name": displayName,
				"sort_order":   sortOrder,
			}).Error; err != nil {
				return fmt.Errorf("update agent %s: %w", agentID, err)
			}
		}

		for name, enabled := range defaults {
			var count int64
			tx.Model(&VulnerabilityFlag{}).Where("agent_id = ? AND name = ?", agentID, name).Count(&count)
			if count > 0 {
				continue
			}
			if err := tx.Create(&VulnerabilityFlag{AgentID: agentID, Name: name, Enabled: enabled}).Error; err != nil {
				return fmt.Errorf("seed flag %s/%s: %w", agentID, name, err)
			}
		}
		log.Debug().Str("module", "database").Str("agent", agentID).Msg("agent ensured")
		return nil
	})
}

func ListAgents() ([]Agent, error) {
	var agents []Agent
	if err := DB.Preload("Flags").Order("sort_order, agent_id").Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func GetAgent(agentID string) (*Agent, error) {
	var a Agent
	err := DB.Preload("Flags").Where("agent_id = ?", agentID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetVulnerability updates one flag and returns the agent's full flag map.
func SetVulnerability(agentID, name string, enabled bool) (map[string]bool, error) {
	if _, err := GetAgent(agentID); err != nil {
		return nil, err
	}
	res := DB.Model(&VulnerabilityFlag{}).
		Where("agent_id = ? AND name = ?", agentID, name).
		Update("enabled", enabled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUnknownVulnerability
	}
	a, err := GetAgent(agentID)
	if err != nil {
		return nil, err
	}
	return a.Vulnerabilities(), nil
}

func RecordCommand(rec *CommandRecord) error {
	return DB.Create(rec).Error
}

// RecentCommands returns up to limit records for the agent, newest first.
func RecentCommands(agentID string, limit int) ([]CommandRecord, error) {
	var recs []CommandRecord
	q := DB.Where("agent_id = ?", agentID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
