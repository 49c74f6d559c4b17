package domain

import "time"

// FleetStatus описывает положение вагона в парке по данным реестра активов.
type FleetStatus string

const (
	// FleetStatusRevenue — вагон в коммерческой работе.
	FleetStatusRevenue FleetStatus = "revenue"
	// FleetStatusIdle — вагон в отстое.
	FleetStatusIdle FleetStatus = "idle"
	// FleetStatusDisposed — вагон списан.
	FleetStatusDisposed FleetStatus = "disposed"
	// FleetStatusRetired — вагон выведен из парка.
	FleetStatusRetired FleetStatus = "retired"
)

// OutOfFleet сообщает, выведен ли вагон из парка: для таких вагонов
// открытие shopping-событий запрещено.
func (s FleetStatus) OutOfFleet() bool {
	return s == FleetStatusDisposed || s == FleetStatusRetired
}

// AssetRegistry описывает взаимодействие с реестром активов (вагонов).
type AssetRegistry interface {
	// Exists проверяет, известен ли вагон реестру.
	Exists(assetID string) (bool, error)
	// FleetStatus возвращает текущий статус вагона в парке.
	FleetStatus(assetID string) (FleetStatus, error)
}

// IdleTracker описывает взаимодействие с трекером простоев вагона.
type IdleTracker interface {
	// Open открывает окно простоя по вагону с тегом причины.
	Open(assetID, reasonTag string) error
	// Close закрывает текущее окно простоя: вагон снова в активном процессе.
	Close(assetID string) error
}

// TriageQueue описывает взаимодействие с очередью triage
// (вагоны, ожидающие решения о возврате/размещении).
type TriageQueue interface {
	// ResolveActive помечает активную запись вагона решённой со ссылкой на событие.
	ResolveActive(assetID, resolutionTag, actor, note, linkedEventID string) error
	// CreateEntry ставит вагон в очередь с приоритетом и ссылкой на событие.
	CreateEntry(assetID, reasonTag string, priority Priority, note, actor, linkedEventID string) error
}

// RepairLimit — результат внешнего расчёта потолка стоимости ремонта.
type RepairLimit struct {
	BookValueMinor int64
	CeilingMinor   int64
}

// RepairLimitCalculator описывает внешний калькулятор лимита ремонта.
type RepairLimitCalculator interface {
	// ComputeCeiling возвращает балансовую стоимость вагона и потолок ремонта.
	ComputeCeiling(assetID string) (RepairLimit, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
