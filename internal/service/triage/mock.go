package triage

import (
	"sync"

	"github.com/railfleet/sms/internal/domain"
)

// Entry фиксирует один вызов CreateEntry.
type Entry struct {
	AssetID       string
	ReasonTag     string
	Priority      domain.Priority
	Note          string
	Actor         string
	LinkedEventID string
}

// Resolution фиксирует один вызов ResolveActive.
type Resolution struct {
	AssetID       string
	ResolutionTag string
	Actor         string
	Note          string
	LinkedEventID string
}

// MockQueue — потокобезопасная заглушка TriageQueue: оркестратор
// обращается к очереди из фоновых side effects.
type MockQueue struct {
	mu sync.Mutex

	ResolveErr error
	CreateErr  error

	entries     []Entry
	resolutions []Resolution
}

// NewMockQueue возвращает mock с успешным сценарием по умолчанию.
func NewMockQueue() *MockQueue {
	return &MockQueue{}
}

// ResolveActive записывает разрешение активной записи вагона.
func (m *MockQueue) ResolveActive(assetID, resolutionTag, actor, note, linkedEventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ResolveErr != nil {
		return m.ResolveErr
	}
	m.resolutions = append(m.resolutions, Resolution{
		AssetID:       assetID,
		ResolutionTag: resolutionTag,
		Actor:         actor,
		Note:          note,
		LinkedEventID: linkedEventID,
	})
	return nil
}

// CreateEntry записывает постановку вагона в очередь.
func (m *MockQueue) CreateEntry(assetID, reasonTag string, priority domain.Priority, note, actor, linkedEventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.entries = append(m.entries, Entry{
		AssetID:       assetID,
		ReasonTag:     reasonTag,
		Priority:      priority,
		Note:          note,
		Actor:         actor,
		LinkedEventID: linkedEventID,
	})
	return nil
}

// Entries возвращает копию зафиксированных вызовов CreateEntry.
func (m *MockQueue) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Resolutions возвращает копию зафиксированных вызовов ResolveActive.
func (m *MockQueue) Resolutions() []Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Resolution(nil), m.resolutions...)
}

var _ domain.TriageQueue = (*MockQueue)(nil)
