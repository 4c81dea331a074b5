package agents

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// subscriberBuffer is how many lines a slow subscriber may lag before lines
// are dropped for it.
const subscriberBuffer = 32

type subscriber struct {
	id      string
	agent   string
	counter int
	ch      chan string
}

// LogFeed produces simulated log lines for every subscribed agent on a fixed
// schedule. Each subscription numbers its lines from zero.
type LogFeed struct {
	interval time.Duration
	cron     *cron.Cron
	logger   zerolog.Logger

	mu   sync.Mutex
	subs map[string]*subscriber
}

// NewLogFeed creates a feed ticking every interval. Call Start to begin.
func NewLogFeed(interval time.Duration) *LogFeed {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &LogFeed{
		interval: interval,
		cron:     cron.New(),
		logger:   log.With().Str("module", "logfeed").Logger(),
		subs:     make(map[string]*subscriber),
	}
}

// Start schedules the feed.
func (f *LogFeed) Start() error {
	if _, err := f.cron.AddFunc(fmt.Sprintf("@every %s", f.interval), f.Tick); err != nil {
		return fmt.Errorf("schedule log feed: %w", err)
	}
	f.cron.Start()
	f.logger.Info().Dur("interval", f.interval).Msg("log feed started")
	return nil
}

// Stop halts the schedule and closes all subscriptions.
func (f *LogFeed) Stop() {
	<-f.cron.Stop().Done()
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.subs {
		close(s.ch)
		delete(f.subs, id)
	}
}

// Subscribe returns a channel of log lines for agent and a function that
// ends the subscription. The channel is closed when the subscription ends.
func (f *LogFeed) Subscribe(agent string) (<-chan string, func()) {
	s := &subscriber{id: uuid.NewString(), agent: agent, ch: make(chan string, subscriberBuffer)}
	f.mu.Lock()
	f.subs[s.id] = s
	f.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[s.id]; ok {
				delete(f.subs, s.id)
				close(s.ch)
			}
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (f *LogFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Tick emits one line to every subscriber.
func (f *LogFeed) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		line := fmt.Sprintf("[%s] simulated log line %d", s.agent, s.counter)
		select {
		case s.ch <- line:
			s.counter++
		default:
			f.logger.Debug().Str("agent", s.agent).Msg("subscriber lagging, line dropped")
		}
	}
}
