// Package terminal implements the client side of an interactive command
// session with a remote agent over a WebSocket.
//
// # Core Components
//
//   - [DisplayBuffer]: Ordered transcript of entries tagged by [Origin],
//     optionally bounded. Eviction only removes the oldest entries.
//   - [History]: Shell-style recall of submitted commands with a saved draft.
//   - [Channel]: One connection to one host, driven through
//     [StateDisconnected] → [StateConnecting] → [StateConnected] → [StateClosed].
//     [Channel.Teardown] returns it to [StateDisconnected] silently.
//   - [SessionManager]: Binds a Channel to the selected host and keeps the
//     transcript and history consistent across host changes.
//   - [LogTail]: Read-only stream of an agent's log lines, capped at
//     [DefaultLogStreamLines].
//
// # Generations
//
// Each channel is created with a generation number. Selecting a host bumps the
// generation before the old channel is torn down, and every transport callback
// is checked against the current generation under the manager lock. Events
// from a replaced channel are dropped, so a late reply from host A never lands
// in host B's transcript.
//
// # Reconnection
//
// The manager never reconnects on its own. A closed or failed channel stays
// closed until [SessionManager.Reconnect] or [SessionManager.SelectHost] is
// called. [Config.OnChannelClosed] is the hook for a caller-side policy.
package terminal
