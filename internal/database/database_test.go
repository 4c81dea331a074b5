package database

import (
	"errors"
	"testing"
)

// setupTestDB points DB at a fresh in-memory SQLite database.
func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	prev := DB
	DB = db
	t.Cleanup(func() {
		Close()
		DB = prev
	})
}

func seed(t *testing.T) {
	t.Helper()
	flags := map[string]bool{"weak_smb_signing": false, "outdated_packages": true}
	if err := EnsureAgent("wincvex-dc", "Domain Controller", 0, flags); err != nil {
		t.Fatalf("EnsureAgent: %v", err)
	}
	if err := EnsureAgent("wincvex-host-b", "Host B", 1, flags); err != nil {
		t.Fatalf("EnsureAgent: %v", err)
	}
}

func TestEnsureAgent_SeedsFlags(t *testing.T) {
	setupTestDB(t)
	seed(t)

	a, err := GetAgent("wincvex-dc")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if a.DisplayName != "Domain Controller" {
		t.Errorf("unexpected display name %q", a.DisplayName)
	}
	v := a.Vulnerabilities()
	if len(v) != 2 || v["weak_smb_signing"] || !v["outdated_packages"] {
		t.Errorf("unexpected flags %v", v)
	}
}

func TestEnsureAgent_KeepsToggledValues(t *testing.T) {
	setupTestDB(t)
	seed(t)

	if _, err := SetVulnerability("wincvex-dc", "weak_smb_signing", true); err != nil {
		t.Fatalf("SetVulnerability: %v", err)
	}
	// Re-seeding on restart must not reset the flag, but adds new ones.
	if err := EnsureAgent("wincvex-dc", "DC", 0, map[string]bool{"weak_smb_signing": false, "open_firewall_port": false}); err != nil {
		t.Fatalf("EnsureAgent: %v", err)
	}
	a, _ := GetAgent("wincvex-dc")
	v := a.Vulnerabilities()
	if !v["weak_smb_signing"] {
		t.Error("toggled flag should survive re-seeding")
	}
	if _, ok := v["open_firewall_port"]; !ok {
		t.Error("new flag should be added")
	}
	if a.DisplayName != "DC" {
		t.Errorf("display name should be refreshed, got %q", a.DisplayName)
	}
}

func TestListAgents_Ordered(t *testing.T) {
	setupTestDB(t)
	if err := EnsureAgent("zeta", "Z", 0, nil); err != nil {
		t.Fatal(err)
	}
	seed(t)

	agents, err := ListAgents()
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(agents))
	}
	want := []string{"wincvex-dc", "zeta", "wincvex-host-b"}
	for i, id := range want {
		if agents[i].AgentID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, agents[i].AgentID)
		}
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	setupTestDB(t)
	if _, err := GetAgent("nope"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestSetVulnerability(t *testing.T) {
	setupTestDB(t)
	seed(t)

	v, err := SetVulnerability("wincvex-host-b", "weak_smb_signing", true)
	if err != nil {
		t.Fatalf("SetVulnerability: %v", err)
	}
	if !v["weak_smb_signing"] {
		t.Errorf("expected flag enabled, got %v", v)
	}
	other, _ := GetAgent("wincvex-dc")
	if other.Vulnerabilities()["weak_smb_signing"] {
		t.Error("toggle must not leak to other agents")
	}

	if _, err := SetVulnerability("wincvex-host-b", "nope", true); !errors.Is(err, ErrUnknownVulnerability) {
		t.Errorf("expected ErrUnknownVulnerability, got %v", err)
	}
	if _, err := SetVulnerability("nope", "weak_smb_signing", true); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestRecentCommands(t *testing.T) {
	setupTestDB(t)
	for _, cmd := range []string{"ls", "whoami", "uptime"} {
		if err := RecordCommand(&CommandRecord{AgentID: "wincvex-dc", Command: cmd, Source: "terminal", Allowed: true}); err != nil {
			t.Fatalf("RecordCommand: %v", err)
		}
	}
	RecordCommand(&CommandRecord{AgentID: "wincvex-host-b", Command: "date", Allowed: true})

	recs, err := RecentCommands("wincvex-dc", 2)
	if err != nil {
		t.Fatalf("RecentCommands: %v", err)
	}
	if len(recs) != 2 || recs[0].Command != "uptime" || recs[1].Command != "whoami" {
		t.Errorf("unexpected records %+v", recs)
	}
}
