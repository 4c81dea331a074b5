package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/agents", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"agents": []Agent{{ID: "wincvex-dc", DisplayName: "DC", Vulnerabilities: map[string]bool{"weak_smb_signing": false}}},
		})
	})
	mux.HandleFunc("GET /api/agents/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "wincvex-dc" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Unknown agent"})
			return
		}
		json.NewEncoder(w).Encode(Agent{ID: "wincvex-dc"})
	})
	mux.HandleFunc("POST /api/agents/{id}/vulnerabilities/{vuln}/{action}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"vulnerabilities": map[string]bool{r.PathValue("vuln"): r.PathValue("action") == "enable"},
		})
	})
	mux.HandleFunc("POST /api/agents/{id}/exec", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["command"] != "whoami" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Command not allowed"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"output": r.PathValue("id") + `\user`})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ListAgents(t *testing.T) {
	c := New(newTestServer(t).URL+"/", nil)
	list, err := c.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(list) != 1 || list[0].ID != "wincvex-dc" || list[0].DisplayName != "DC" {
		t.Errorf("unexpected agents %+v", list)
	}
}

func TestClient_GetAgent_NotFound(t *testing.T) {
	c := New(newTestServer(t).URL, nil)
	_, err := c.GetAgent(context.Background(), "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Detail != "Unknown agent" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestClient_ToggleVulnerability(t *testing.T) {
	c := New(newTestServer(t).URL, nil)
	flags, err := c.ToggleVulnerability(context.Background(), "wincvex-dc", "weak_smb_signing", true)
	if err != nil {
		t.Fatalf("ToggleVulnerability: %v", err)
	}
	if !flags["weak_smb_signing"] {
		t.Errorf("expected enabled, got %v", flags)
	}
	flags, _ = c.ToggleVulnerability(context.Background(), "wincvex-dc", "weak_smb_signing", false)
	if flags["weak_smb_signing"] {
		t.Errorf("expected disabled, got %v", flags)
	}
}

func TestClient_Exec(t *testing.T) {
	c := New(newTestServer(t).URL, nil)
	out, err := c.Exec(context.Background(), "wincvex-dc", "whoami")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if out != `wincvex-dc\user` {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := c.Exec(context.Background(), "wincvex-dc", "rm"); err == nil {
		t.Error("expected error for disallowed command")
	}
}
