package assets

import "github.com/railfleet/sms/internal/domain"

// MockRegistry — конфигурируемая заглушка AssetRegistry для тестов
// и локального запуска. По умолчанию любой вагон известен и находится
// в коммерческой работе.
type MockRegistry struct {
	// Missing перечисляет вагоны, неизвестные реестру.
	Missing map[string]bool
	// Statuses переопределяет статус вагона в парке.
	Statuses map[string]domain.FleetStatus

	ExistsErr error
	StatusErr error

	ExistsCalls int
	StatusCalls int
}

// NewMockRegistry возвращает mock с успешным сценарием по умолчанию.
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		Missing:  make(map[string]bool),
		Statuses: make(map[string]domain.FleetStatus),
	}
}

// Exists возвращает true для всех вагонов, кроме перечисленных в Missing.
func (m *MockRegistry) Exists(assetID string) (bool, error) {
	m.ExistsCalls++
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	return !m.Missing[assetID], nil
}

// FleetStatus возвращает переопределённый статус или revenue.
func (m *MockRegistry) FleetStatus(assetID string) (domain.FleetStatus, error) {
	m.StatusCalls++
	if m.StatusErr != nil {
		return "", m.StatusErr
	}
	if status, ok := m.Statuses[assetID]; ok {
		return status, nil
	}
	return domain.FleetStatusRevenue, nil
}

var _ domain.AssetRegistry = (*MockRegistry)(nil)
