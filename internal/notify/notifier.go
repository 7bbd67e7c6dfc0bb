package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	instruments "labmaint-cloud/internal/instruments/domain"
	schedule "labmaint-cloud/internal/schedule/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Notifier delivers overdue maintenance reminders with a per-event cooldown
// so a daily scan does not re-send reminders faster than configured.
type Notifier struct {
	channel        Channel
	template       *Template
	logger         *log.Logger
	clock          Clock
	cooldown       time.Duration
	requestTimeout time.Duration

	mu   sync.Mutex
	sent map[string]time.Time
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithCooldown sets the minimum interval between reminders for one event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithRequestTimeout bounds each delivery attempt.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier constructs an overdue reminder notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("reminder notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		cooldown:       20 * time.Hour,
		requestTimeout: 5 * time.Second,
		sent:           make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// NotifyOverdue sends one reminder for an overdue event, subject to the
// cooldown. Delivery failures are logged and retried on the next scan.
func (n *Notifier) NotifyOverdue(ctx context.Context, event schedule.MaintenanceEvent, instrument instruments.Instrument) {
	if n == nil || n.channel == nil {
		return
	}
	now := n.clock.Now()

	n.mu.Lock()
	if last, ok := n.sent[event.ID]; ok && now.Sub(last) < n.cooldown {
		n.mu.Unlock()
		return
	}
	// Entries past the cooldown serve no purpose; dropping them here keeps
	// the map bounded by the events seen in the last cooldown window.
	for id, last := range n.sent {
		if now.Sub(last) >= n.cooldown {
			delete(n.sent, id)
		}
	}
	n.sent[event.ID] = now
	n.mu.Unlock()

	due := schedule.DateOnly(event.DueDate)
	content, err := n.template.Render(TemplateData{
		EqpID:           instrument.EqpID,
		InstrumentID:    instrument.ID,
		MaintenanceType: event.MaintenanceType,
		DueDate:         due.Format("2006-01-02"),
		DaysOverdue:     int(schedule.DateOnly(now).Sub(due).Hours() / 24),
		Location:        instrument.Location,
	})
	if err != nil {
		n.logf("reminder render error: %v", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.requestTimeout)
	defer cancel()
	if err := n.channel.Send(sendCtx, content); err != nil {
		n.logf("reminder send error event=%s: %v", event.ID, err)
		n.mu.Lock()
		delete(n.sent, event.ID)
		n.mu.Unlock()
	}
}

func (n *Notifier) logf(format string, args ...any) {
	if n.logger != nil {
		n.logger.Printf(format, args...)
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
