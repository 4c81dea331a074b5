package agents

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// AllowedCommands are the commands the REST exec endpoint accepts.
var AllowedCommands = []string{"ls", "whoami", "uptime", "date", "cat_os"}

// terminal-only aliases for allow-listed commands.
var commandAliases = map[string]string{
	"id":  "whoami",
	"dir": "ls",
}

func isAllowed(cmd string) bool {
	for _, c := range AllowedCommands {
		if c == cmd {
			return true
		}
	}
	return false
}

// simulate renders the output of an allow-listed command for agent. flags
// are the agent's current vulnerability flags.
func simulate(agent, cmd string, flags map[string]bool, started, now time.Time) string {
	switch cmd {
	case "ls":
		files := []string{"agent.py", "requirements.txt", "logs"}
		if flags[VulnOpenFirewallPort] {
			files = append(files, "firewall.rules")
		}
		return strings.Join(files, "\n")
	case "whoami":
		return agent + `\user`
	case "uptime":
		return "up " + strings.ToLower(units.HumanDuration(now.Sub(started)))
	case "date":
		return now.UTC().Format(time.UnixDate)
	case "cat_os":
		if flags[VulnOutdatedPackages] {
			return osRelease("10 (buster)", "10")
		}
		return osRelease("12 (bookworm)", "12")
	}
	return fmt.Sprintf("Executed: %s", cmd)
}

func osRelease(version, versionID string) string {
	return strings.Join([]string{
		`PRETTY_NAME="Debian GNU/Linux ` + version + `"`,
		`NAME="Debian GNU/Linux"`,
		`VERSION_ID="` + versionID + `"`,
		`VERSION="` + version + `"`,
		`ID=debian`,
	}, "\n")
}
