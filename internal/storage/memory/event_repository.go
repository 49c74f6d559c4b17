package memory

import (
	"sort"
	"sync"

	"github.com/railfleet/sms/internal/domain"
)

// eventRepositoryInMemory — in-memory реализация EventRepository для
// локальной разработки и тестов.
type eventRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.ShoppingEvent
}

// NewEventRepository возвращает in-memory репозиторий shopping-событий.
func NewEventRepository() domain.EventRepository {
	return &eventRepositoryInMemory{
		items: make(map[string]domain.ShoppingEvent),
	}
}

// Create сохраняет новое событие, атомарно проверяя единственность
// активного события вагона.
func (r *eventRepositoryInMemory) Create(event domain.ShoppingEvent) error {
	return r.create(event, "")
}

// CreateChained сохраняет событие-преемник, исключая предшественника из
// проверки единственности активного события.
func (r *eventRepositoryInMemory) CreateChained(event domain.ShoppingEvent, predecessorID string) error {
	return r.create(event, predecessorID)
}

func (r *eventRepositoryInMemory) create(event domain.ShoppingEvent, excludeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[event.ID]; exists {
		return domain.ErrVersionConflict
	}
	for _, existing := range r.items {
		if existing.AssetID != event.AssetID || existing.IsTerminal() {
			continue
		}
		if excludeID != "" && existing.ID == excludeID {
			continue
		}
		return domain.ErrActiveEventExists
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[event.ID] = event
	return nil
}

// Get возвращает событие или ErrEventNotFound, если его нет.
func (r *eventRepositoryInMemory) Get(id string) (domain.ShoppingEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.items[id]
	if !ok {
		return domain.ShoppingEvent{}, domain.ErrEventNotFound
	}
	return event, nil
}

// GetActiveForAsset возвращает незавершённое событие вагона.
// При chain shopping активных событий может быть временно два;
// возвращается более новое.
func (r *eventRepositoryInMemory) GetActiveForAsset(assetID string) (domain.ShoppingEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found  bool
		result domain.ShoppingEvent
	)
	for _, event := range r.items {
		if event.AssetID != assetID || event.IsTerminal() {
			continue
		}
		if !found || event.CreatedAt.After(result.CreatedAt) {
			result = event
			found = true
		}
	}
	if !found {
		return domain.ShoppingEvent{}, domain.ErrEventNotFound
	}
	return result, nil
}

// ListForAsset возвращает события вагона, новые первыми.
func (r *eventRepositoryInMemory) ListForAsset(assetID string, limit int) ([]domain.ShoppingEvent, error) {
	return r.List(domain.EventFilter{AssetID: assetID, Limit: limit})
}

// List возвращает события по фильтру, новые первыми.
func (r *eventRepositoryInMemory) List(filter domain.EventFilter) ([]domain.ShoppingEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.ShoppingEvent, 0, len(r.items))
	for _, event := range r.items {
		if !matchesFilter(event, filter) {
			continue
		}
		result = append(result, event)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

func matchesFilter(event domain.ShoppingEvent, filter domain.EventFilter) bool {
	if filter.AssetID != "" && event.AssetID != filter.AssetID {
		return false
	}
	if filter.Source != "" && event.Source != filter.Source {
		return false
	}
	if filter.ShopCode != "" && event.ShopCode != filter.ShopCode {
		return false
	}
	if len(filter.States) > 0 {
		match := false
		for _, state := range filter.States {
			if event.State == state {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// Save перезаписывает событие, проверяя версию (optimistic locking).
func (r *eventRepositoryInMemory) Save(event domain.ShoppingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[event.ID]
	if !ok {
		return domain.ErrEventNotFound
	}
	if current.Version != event.Version {
		return domain.ErrVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	event.Version++
	r.items[event.ID] = event
	return nil
}

var _ domain.EventRepository = (*eventRepositoryInMemory)(nil)
