package tui

import tea "github.com/charmbracelet/bubbletea"

// Notifier turns session change callbacks into refresh messages. Notify
// never blocks; bursts of changes collapse into one pending refresh.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify marks the view as stale. Safe to call from any goroutine.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait returns a command that delivers the next refresh. The model re-arms
// it after every refresh.
func (n *Notifier) Wait() tea.Cmd {
	if n == nil {
		return nil
	}
	return func() tea.Msg {
		<-n.ch
		return refreshMsg{}
	}
}
