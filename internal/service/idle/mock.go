package idle

import (
	"sync"

	"github.com/railfleet/sms/internal/domain"
)

// OpenCall фиксирует один вызов Open.
type OpenCall struct {
	AssetID   string
	ReasonTag string
}

// MockTracker — потокобезопасная заглушка IdleTracker: оркестратор
// вызывает трекер из фоновых side effects.
type MockTracker struct {
	mu sync.Mutex

	OpenErr  error
	CloseErr error

	opened []OpenCall
	closed []string
}

// NewMockTracker возвращает mock с успешным сценарием по умолчанию.
func NewMockTracker() *MockTracker {
	return &MockTracker{}
}

// Open записывает открытие окна простоя.
func (m *MockTracker) Open(assetID, reasonTag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.opened = append(m.opened, OpenCall{AssetID: assetID, ReasonTag: reasonTag})
	return nil
}

// Close записывает закрытие окна простоя.
func (m *MockTracker) Close(assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CloseErr != nil {
		return m.CloseErr
	}
	m.closed = append(m.closed, assetID)
	return nil
}

// Opened возвращает копию зафиксированных вызовов Open.
func (m *MockTracker) Opened() []OpenCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OpenCall(nil), m.opened...)
}

// Closed возвращает копию зафиксированных вызовов Close.
func (m *MockTracker) Closed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.closed...)
}

var _ domain.IdleTracker = (*MockTracker)(nil)
