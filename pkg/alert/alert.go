package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wavewatch/wavewatch/pkg/event"
)

// Item is one breaking wave inside a notification.
type Item struct {
	TrendID    string         `json:"trend_id"`
	Title      string         `json:"title"`
	Platform   event.Platform `json:"platform"`
	Category   string         `json:"category"`
	WaveScore  float64        `json:"wave_score"`
	Confidence float64        `json:"confidence"`
}

// Notification is the payload sent to alert destinations.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Items []Item `json:"items"`
}

// Notifier delivers notifications to one destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager filters score results against the alert threshold and broadcasts
// notifications. It owns the cooldown state: a trend alerted once stays
// quiet until the cooldown passes, even if it keeps scoring high.
type Manager struct {
	notifiers []Notifier
	threshold float64
	cooldown  time.Duration

	mu      sync.Mutex
	alerted map[string]time.Time
}

// NewManager creates an alert manager. threshold <= 0 defaults to 80,
// cooldown <= 0 to six hours.
func NewManager(notifiers []Notifier, threshold float64, cooldown time.Duration) *Manager {
	if threshold <= 0 {
		threshold = 80
	}
	if cooldown <= 0 {
		cooldown = 6 * time.Hour
	}
	return &Manager{
		notifiers: notifiers,
		threshold: threshold,
		cooldown:  cooldown,
		alerted:   make(map[string]time.Time),
	}
}

// HasNotifiers reports whether at least one destination is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// NotifyScores sends one notification covering every result at or above the
// threshold that is not in cooldown. titles maps trend IDs to display
// titles. Returns how many items were alerted.
func (m *Manager) NotifyScores(ctx context.Context, results []event.ScoreResult, titles map[string]string, now time.Time) (int, error) {
	if !m.HasNotifiers() {
		return 0, nil
	}

	items := m.pick(results, titles, now)
	if len(items) == 0 {
		return 0, nil
	}

	n := &Notification{
		Title: fmt.Sprintf("%d waves breaking", len(items)),
		Body:  fmt.Sprintf("wave score crossed %.0f", m.threshold),
		Items: items,
	}
	return len(items), m.Broadcast(ctx, n)
}

func (m *Manager) pick(results []event.ScoreResult, titles map[string]string, now time.Time) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []Item
	for _, r := range results {
		if r.WaveScore < m.threshold {
			continue
		}
		if last, ok := m.alerted[r.TrendID]; ok && now.Sub(last) < m.cooldown {
			continue
		}
		m.alerted[r.TrendID] = now
		items = append(items, Item{
			TrendID:    r.TrendID,
			Title:      titles[r.TrendID],
			Platform:   r.Platform,
			Category:   r.Category,
			WaveScore:  r.WaveScore,
			Confidence: r.Confidence,
		})
	}

	// Expire stale entries so the map does not grow unbounded.
	for id, at := range m.alerted {
		if now.Sub(at) >= m.cooldown {
			delete(m.alerted, id)
		}
	}
	return items
}

// Broadcast sends a notification to all registered notifiers. One failing
// destination does not stop the rest.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
