// Package window maintains the virtualized set of calendar days the
// timeline has materialized, extending it lazily as the viewport nears an
// edge and truncating the far end so memory stays bounded.
package window

import (
	"sync"
	"time"

	"babyriver/internal/log"
	"babyriver/internal/model"
)

// Direction selects which edge of the window to extend.
type Direction int

const (
	// Up extends toward the past (days are prepended).
	Up Direction = iota
	// Down extends toward the future (days are appended).
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// State is the manager's coarse lifecycle state. Loading is transient:
// extensions run synchronously, so observers only ever see Idle between
// public calls; the state exists for logging and introspection.
type State int

const (
	Idle State = iota
	Loading
)

// Policy configures window behavior.
type Policy struct {
	// BufferDays is how many days are seeded on each side of today.
	BufferDays int

	// BatchSize is how many days one Extend call adds.
	BatchSize int

	// MaxDays bounds the total day count; the opposite end is truncated
	// when an extension would exceed it.
	MaxDays int

	// ScrollThresholdPx is the near-edge margin that triggers extension.
	ScrollThresholdPx float64

	// MinInterval is the anti-thrash guard: Extend calls arriving sooner
	// than this after the previous one are ignored.
	MinInterval time.Duration

	// DayHeight and SeparatorHeight size the vertical band per day.
	DayHeight       float64
	SeparatorHeight float64
}

// DefaultPolicy returns the policy used when config leaves fields unset.
func DefaultPolicy() Policy {
	return Policy{
		BufferDays:        10,
		BatchSize:         3,
		MaxDays:           21,
		ScrollThresholdPx: 600,
		MinInterval:       250 * time.Millisecond,
		DayHeight:         24 * 40,
		SeparatorHeight:   24,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.BufferDays <= 0 {
		p.BufferDays = d.BufferDays
	}
	if p.BatchSize <= 0 {
		p.BatchSize = d.BatchSize
	}
	if p.MaxDays <= 0 {
		p.MaxDays = d.MaxDays
	}
	if p.ScrollThresholdPx <= 0 {
		p.ScrollThresholdPx = d.ScrollThresholdPx
	}
	if p.MinInterval <= 0 {
		p.MinInterval = d.MinInterval
	}
	if p.DayHeight <= 0 {
		p.DayHeight = d.DayHeight
	}
	if p.SeparatorHeight < 0 {
		p.SeparatorHeight = d.SeparatorHeight
	}
	return p
}

// Manager owns the materialized day list. All mutation goes through its
// public operations; callers only ever receive fresh copies, never a
// handle into internal state.
type Manager struct {
	mu         sync.Mutex
	policy     Policy
	days       []model.Day
	state      State
	lastExtend time.Time
	now        func() time.Time // test seam for anti-thrash timing
}

// NewManager creates an empty Manager with the given policy.
func NewManager(policy Policy) *Manager {
	return &Manager{
		policy: policy.normalized(),
		now:    time.Now,
	}
}

// Policy returns the normalized policy in effect.
func (m *Manager) Policy() Policy {
	return m.policy
}

// State returns the manager's current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Initialize seeds a symmetric buffer of days around today and returns the
// materialized list.
func (m *Manager) Initialize(today time.Time) []model.Day {
	m.mu.Lock()
	defer m.mu.Unlock()

	today = midnight(today)
	n := 2*m.policy.BufferDays + 1
	m.days = make([]model.Day, 0, n)
	for i := 0; i < n; i++ {
		m.days = append(m.days, model.Day{
			Date: today.AddDate(0, 0, i-m.policy.BufferDays),
		})
	}
	m.reindexLocked()
	m.lastExtend = time.Time{}

	log.Debug("day window initialized",
		"days", len(m.days),
		"first", m.days[0].Date.Format("2006-01-02"),
		"last", m.days[len(m.days)-1].Date.Format("2006-01-02"),
	)
	return m.snapshotLocked()
}

// Days returns a copy of the current day list.
func (m *Manager) Days() []model.Day {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// TotalHeight returns the vertical pixel extent of the loaded window.
func (m *Manager) TotalHeight() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.days)
	if n == 0 {
		return 0
	}
	return float64(n)*m.policy.DayHeight + float64(n-1)*m.policy.SeparatorHeight
}

// Extend adds a batch of days at the given edge, truncates the opposite
// edge beyond MaxDays, reindexes, and returns the new list. Calls arriving
// within MinInterval of the previous extension are ignored and return the
// unchanged list, which also serializes extensions: there is no reentrant
// Loading state to observe.
func (m *Manager) Extend(dir Direction) []model.Day {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.days) == 0 {
		return nil
	}
	if since := m.now().Sub(m.lastExtend); !m.lastExtend.IsZero() && since < m.policy.MinInterval {
		log.Debug("extend suppressed by anti-thrash guard",
			"direction", dir.String(),
			"since_last", since,
		)
		return m.snapshotLocked()
	}

	m.state = Loading
	defer func() { m.state = Idle }()

	batch := m.policy.BatchSize
	switch dir {
	case Up:
		first := m.days[0].Date
		added := make([]model.Day, batch)
		for i := 0; i < batch; i++ {
			added[i] = model.Day{Date: first.AddDate(0, 0, i-batch)}
		}
		m.days = append(added, m.days...)
		if len(m.days) > m.policy.MaxDays {
			m.days = m.days[:m.policy.MaxDays]
		}
	case Down:
		last := m.days[len(m.days)-1].Date
		for i := 1; i <= batch; i++ {
			m.days = append(m.days, model.Day{Date: last.AddDate(0, 0, i)})
		}
		if over := len(m.days) - m.policy.MaxDays; over > 0 {
			m.days = m.days[over:]
		}
	}

	m.reindexLocked()
	m.lastExtend = m.now()

	log.Debug("day window extended",
		"direction", dir.String(),
		"days", len(m.days),
		"first", m.days[0].Date.Format("2006-01-02"),
		"last", m.days[len(m.days)-1].Date.Format("2006-01-02"),
	)
	return m.snapshotLocked()
}

// HandleScroll inspects a viewport scroll position and extends the window
// when the position crosses the near-edge threshold. It returns the
// (possibly unchanged) day list and whether an extension happened.
func (m *Manager) HandleScroll(scrollTop, viewportHeight float64) ([]model.Day, bool) {
	total := m.TotalHeight()
	threshold := m.policy.ScrollThresholdPx

	switch {
	case scrollTop <= threshold:
		before := m.Days()
		after := m.Extend(Up)
		return after, len(after) != len(before) || (len(after) > 0 && len(before) > 0 && !after[0].Date.Equal(before[0].Date))
	case scrollTop+viewportHeight >= total-threshold:
		before := m.Days()
		after := m.Extend(Down)
		last := len(after) - 1
		return after, len(after) != len(before) || (last >= 0 && len(before) > 0 && !after[last].Date.Equal(before[len(before)-1].Date))
	default:
		return m.Days(), false
	}
}

// FindDay locates the day matching the given calendar date in the current
// window.
func (m *Manager) FindDay(date time.Time) (model.Day, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.days {
		if d.SameDate(date) {
			return d, true
		}
	}
	return model.Day{}, false
}

// reindexLocked recomputes positional indices and offsets; they are not
// durable identifiers and must be rebuilt after every mutation.
func (m *Manager) reindexLocked() {
	for i := range m.days {
		m.days[i].Index = i
		m.days[i].StartOffset = float64(i) * (m.policy.DayHeight + m.policy.SeparatorHeight)
	}
}

func (m *Manager) snapshotLocked() []model.Day {
	out := make([]model.Day, len(m.days))
	copy(out, m.days)
	return out
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
