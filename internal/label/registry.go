package label

import (
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the in-memory source of truth for label fleet state.
//
// It holds one entry per label and serialises all access behind a mutex.
// The publish engine and the battery simulator may interleave writes to
// the same label; last-writer-wins on the entry is acceptable since the
// field sets they touch barely overlap.
//
// All public methods are thread-safe. Returned labels are copies;
// callers can safely modify them.
type Registry struct {
	labels    map[string]*Label
	mu        sync.RWMutex
	staleness time.Duration
	logger    Logger
}

// NewRegistry creates an empty label registry.
//
// Parameters:
//   - staleness: How long a label may go unseen before it is classified
//     offline. Zero disables staleness-based offline classification.
func NewRegistry(staleness time.Duration) *Registry {
	return &Registry{
		labels:    make(map[string]*Label),
		staleness: staleness,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Seed bulk-loads a starting fleet. Intended to be called once at startup
// with the catalog contents. Statuses are reclassified on load so seeded
// data cannot violate the battery/staleness invariant.
func (r *Registry) Seed(labels []Label, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range labels {
		l := labels[i]
		l.Battery = clampBattery(l.Battery)
		if l.LastSeen.IsZero() {
			l.LastSeen = now
		}
		l.Status = DeriveStatus(l.Battery, l.LastSeen, now, r.staleness)
		r.labels[l.ID] = &l
	}

	r.logger.Info("label registry seeded", "count", len(labels))
}

// Get retrieves a label by ID.
// Returns ErrLabelNotFound if the label does not exist.
func (r *Registry) Get(id string) (Label, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.labels[id]
	if !ok {
		return Label{}, ErrLabelNotFound
	}
	return *l, nil
}

// List returns every label, sorted by ID for a stable order.
func (r *Registry) List() []Label {
	r.mu.RLock()
	defer r.mu.RUnlock()

	labels := make([]Label, 0, len(r.labels))
	for _, l := range r.labels {
		labels = append(labels, *l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].ID < labels[j].ID })
	return labels
}

// Count returns the number of registered labels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.labels)
}

// Apply merges an update into the stored label, creating it with defaults
// when absent. This models the label hardware receiving and applying an
// update message.
//
// Merge semantics:
//   - Name, Price, Promo overwrite only when explicitly provided in the
//     update. A provided price of 0 sets the price to 0; a provided empty
//     promo clears the promotion ("clear" is a valid action).
//   - LastSeen and LastUpdate always refresh to now.
//   - Status is rederived after the merge.
//
// New labels start with battery 100 and the update's fields merged over
// generic defaults.
//
// Returns a copy of the label after the merge.
func (r *Registry) Apply(id string, u Update, now time.Time) Label {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.labels[id]
	if !ok {
		l = &Label{
			ID:      id,
			Name:    DefaultName,
			Battery: DefaultBattery,
		}
		r.labels[id] = l
		r.logger.Info("label created", "id", id)
	}

	if u.Name != nil {
		l.Name = *u.Name
	}
	if u.Price != nil {
		l.Price = *u.Price
	}
	if u.Promo != nil {
		l.Promo = *u.Promo
	}

	l.LastSeen = now
	lastUpdate := now
	l.LastUpdate = &lastUpdate
	l.Status = DeriveStatus(l.Battery, l.LastSeen, now, r.staleness)

	r.logger.Debug("label updated", "id", id, "name", l.Name, "price", l.Price)
	return *l
}

// Observe records a battery report from a real label, refreshing its
// freshness and reclassifying its status. Unknown labels are created with
// defaults so a fleet can grow from hardware reports alone.
//
// Returns a copy of the label after the observation.
func (r *Registry) Observe(id string, battery float64, now time.Time) Label {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.labels[id]
	if !ok {
		l = &Label{
			ID:   id,
			Name: DefaultName,
		}
		r.labels[id] = l
		r.logger.Info("label discovered from status report", "id", id)
	}

	l.Battery = clampBattery(battery)
	l.LastSeen = now
	l.Status = DeriveStatus(l.Battery, l.LastSeen, now, r.staleness)

	return *l
}

// Age performs one battery/freshness tick over every label: drains the
// battery by the amount the decay function yields (clamped at 0), marks
// the label seen now, and reclassifies its status.
//
// Parameters:
//   - now: The tick time; becomes every label's LastSeen
//   - decay: Called once per label; returns the battery units to drain
//
// Returns:
//   - []Label: Post-tick copies, sorted by ID, for best-effort telemetry
func (r *Registry) Age(now time.Time, decay func() float64) []Label {
	r.mu.Lock()
	defer r.mu.Unlock()

	aged := make([]Label, 0, len(r.labels))
	for _, l := range r.labels {
		l.Battery = clampBattery(l.Battery - decay())
		l.LastSeen = now
		l.Status = DeriveStatus(l.Battery, l.LastSeen, now, r.staleness)
		aged = append(aged, *l)
	}
	sort.Slice(aged, func(i, j int) bool { return aged[i].ID < aged[j].ID })
	return aged
}

// Stats is the fleet-wide aggregate used by the stats endpoint.
// Offline is everything not classified online, so it includes low_battery
// labels: the rollup is a binary online/offline bucketing.
type Stats struct {
	Total      int `json:"total"`
	Online     int `json:"online"`
	Offline    int `json:"offline"`
	LowBattery int `json:"lowBattery"`
}

// GetStats returns current fleet statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Total: len(r.labels)}
	for _, l := range r.labels {
		if l.Status == StatusOnline {
			stats.Online++
		}
		if l.Battery < LowBatteryThreshold {
			stats.LowBattery++
		}
	}
	stats.Offline = stats.Total - stats.Online
	return stats
}
