package domain

import "time"

// EventFilter задаёт условия выборки для List.
type EventFilter struct {
	// States ограничивает выборку статусами; пустой срез = все.
	States []EventState
	Source EventSource
	// ShopCode фильтрует по назначенному депо.
	ShopCode string
	AssetID  string
	// Limit ограничивает количество строк (<=0 = без ограничения).
	Limit int
}

// EventRepository описывает требования к хранилищу shopping-событий.
type EventRepository interface {
	// Create сохраняет новое событие. Возвращает ErrActiveEventExists, если
	// у вагона уже есть незавершённое событие; проверка атомарна с записью.
	Create(event ShoppingEvent) error
	// CreateChained сохраняет событие-преемник chain shopping: проверка
	// единственности активного события игнорирует предшественника,
	// чтобы между двумя заходами не возникало разрыва активного процесса.
	CreateChained(event ShoppingEvent, predecessorID string) error
	// Get возвращает событие по идентификатору или ErrEventNotFound.
	Get(id string) (ShoppingEvent, error)
	// GetActiveForAsset возвращает незавершённое событие вагона или ErrEventNotFound.
	GetActiveForAsset(assetID string) (ShoppingEvent, error)
	// ListForAsset возвращает события вагона, новые первыми.
	ListForAsset(assetID string, limit int) ([]ShoppingEvent, error)
	// List возвращает события по фильтру.
	List(filter EventFilter) ([]ShoppingEvent, error)
	// Save применяет обновления к событию с учётом optimistic locking:
	// запись со stale-версией отклоняется с ErrVersionConflict.
	Save(event ShoppingEvent) error
}

// SequenceAllocator выдаёт человекочитаемые номера событий.
type SequenceAllocator interface {
	// NextEventNumber возвращает следующий свободный номер для даты.
	// Выдача атомарна: два конкурентных вызова никогда не получают
	// одинаковый номер. При исчерпании суток — ErrSequenceExhausted.
	NextEventNumber(day time.Time) (string, error)
}

// EstimateRepository хранит снапшоты поданных смет.
type EstimateRepository interface {
	// Create сохраняет снапшот; записи неизменяемы.
	Create(sub EstimateSubmission) error
	// ListForEvent возвращает подачи по событию в порядке создания.
	ListForEvent(eventID string) ([]EstimateSubmission, error)
}

// TransitionLogRepository хранит append-only журнал переходов.
type TransitionLogRepository interface {
	Record(rec TransitionRecord) error
	List(entityID string) ([]TransitionRecord, error)
}
