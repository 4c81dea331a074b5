package database

import "time"

type Agent struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	AgentID     string    `gorm:"uniqueIndex;not null;size:64" json:"id"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Flags []VulnerabilityFlag `gorm:"foreignKey:AgentID;references:AgentID" json:"-"`
}

// VulnerabilityFlag is one simulated weakness on an agent.
type VulnerabilityFlag struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	AgentID   string    `gorm:"not null;uniqueIndex:idx_agent_vuln;size:64" json:"agent_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_agent_vuln;size:64" json:"name"`
	Enabled   bool      `gorm:"not null;default:false" json:"enabled"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CommandRecord is an audit entry for a command executed on an agent.
type CommandRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AgentID   string    `gorm:"not null;index;size:64" json:"agent_id"`
	Command   string    `gorm:"not null" json:"command"`
	Source    string    `gorm:"not null;default:terminal" json:"source"` // "terminal" or "rest"
	Allowed   bool      `gorm:"not null" json:"allowed"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Vulnerabilities returns the agent's flags as a name → enabled map.
func (a Agent) Vulnerabilities() map[string]bool {
	m := make(map[string]bool, len(a.Flags))
	for _, f := range a.Flags {
		m[f.Name] = f.Enabled
	}
	return m
}
