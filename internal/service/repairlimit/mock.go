package repairlimit

import "github.com/railfleet/sms/internal/domain"

// MockCalculator — конфигурируемая заглушка RepairLimitCalculator для тестов.
type MockCalculator struct {
	Limit domain.RepairLimit
	Err   error

	Calls int
}

// NewMockCalculator возвращает mock с заданным лимитом.
func NewMockCalculator(bookValueMinor, ceilingMinor int64) *MockCalculator {
	return &MockCalculator{
		Limit: domain.RepairLimit{
			BookValueMinor: bookValueMinor,
			CeilingMinor:   ceilingMinor,
		},
	}
}

// ComputeCeiling возвращает заранее настроенный лимит и считает вызовы.
func (m *MockCalculator) ComputeCeiling(assetID string) (domain.RepairLimit, error) {
	m.Calls++
	if m.Err != nil {
		return domain.RepairLimit{}, m.Err
	}
	return m.Limit, nil
}

var _ domain.RepairLimitCalculator = (*MockCalculator)(nil)
