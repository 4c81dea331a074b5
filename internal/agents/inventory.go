package agents

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Vulnerability flags every default agent carries.
const (
	VulnWeakSMBSigning     = "weak_smb_signing"
	VulnAnonymousLDAPBinds = "anonymous_ldap_binds"
	VulnOutdatedPackages   = "outdated_packages"
	VulnOpenFirewallPort   = "open_firewall_port"
)

var agentIDPattern = regexp.MustCompile(`^[\w\-]+$`)

// Spec describes one simulated agent.
type Spec struct {
	ID              string          `yaml:"id"`
	DisplayName     string          `yaml:"display_name"`
	Vulnerabilities map[string]bool `yaml:"vulnerabilities"`
}

// Inventory is the set of agents the service simulates.
type Inventory struct {
	Agents []Spec `yaml:"agents"`
}

func defaultFlags() map[string]bool {
	return map[string]bool{
		VulnWeakSMBSigning:     false,
		VulnAnonymousLDAPBinds: false,
		VulnOutdatedPackages:   false,
		VulnOpenFirewallPort:   false,
	}
}

// DefaultInventory returns the three lab agents.
func DefaultInventory() *Inventory {
	return &Inventory{Agents: []Spec{
		{ID: "wincvex-dc", DisplayName: "Domain Controller", Vulnerabilities: defaultFlags()},
		{ID: "wincvex-host-b", DisplayName: "Workstation B", Vulnerabilities: defaultFlags()},
		{ID: "wincvex-host-c", DisplayName: "Workstation C", Vulnerabilities: defaultFlags()},
	}}
}

// LoadInventory reads an inventory file. An empty path yields the default
// inventory.
func LoadInventory(path string) (*Inventory, error) {
	if path == "" {
		return DefaultInventory(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	return ParseInventory(data)
}

// ParseInventory decodes and validates YAML inventory data. Agents without a
// vulnerabilities map get the default flags; a display name defaults to the ID.
func ParseInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	if len(inv.Agents) == 0 {
		return nil, fmt.Errorf("inventory has no agents")
	}
	seen := make(map[string]bool, len(inv.Agents))
	for i := range inv.Agents {
		a := &inv.Agents[i]
		if !agentIDPattern.MatchString(a.ID) {
			return nil, fmt.Errorf("invalid agent id %q", a.ID)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.DisplayName == "" {
			a.DisplayName = a.ID
		}
		if a.Vulnerabilities == nil {
			a.Vulnerabilities = defaultFlags()
		}
	}
	return &inv, nil
}

// IDs returns the agent IDs in inventory order.
func (inv *Inventory) IDs() []string {
	ids := make([]string, len(inv.Agents))
	for i, a := range inv.Agents {
		ids[i] = a.ID
	}
	return ids
}

// Lookup returns the spec for id.
func (inv *Inventory) Lookup(id string) (Spec, bool) {
	for _, a := range inv.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return Spec{}, false
}

// FlagNames returns the sorted flag names of a spec.
func (s Spec) FlagNames() []string {
	names := make([]string, 0, len(s.Vulnerabilities))
	for n := range s.Vulnerabilities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
