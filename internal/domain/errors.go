package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора вагона.
	ErrAssetRequired = errors.New("asset_id is required")
	// Ошибка неизвестного источника события.
	ErrSourceInvalid = errors.New("event source is invalid")
	// Ошибка неизвестного приоритета.
	ErrPriorityInvalid = errors.New("priority is invalid")
	// Ошибка неизвестного статуса жизненного цикла.
	ErrStateInvalid = errors.New("event state is invalid")
	// Ошибка отрицательной суммы в стоимостных полях.
	ErrCostNegative = errors.New("cost amounts must be non-negative")
	// Ошибка неизвестного значения disposition.
	ErrDispositionInvalid = errors.New("disposition is invalid")
	// Ошибка отсутствующего disposition на переходе в DISPO_TO_DESTINATION.
	ErrDispositionRequired = errors.New("disposition is required for this transition")
	// Ошибка отсутствующей причины отмены.
	ErrCancelReasonRequired = errors.New("cancel reason is required")
	// Ошибка некорректной суммы поданной сметы.
	ErrEstimateAmountInvalid = errors.New("estimate total must be greater than zero")

	// ErrEventNotFound возвращается, если событие не найдено в хранилище.
	ErrEventNotFound = errors.New("shopping event not found")
	// ErrAssetNotFound возвращается, если вагон не известен реестру активов.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrAssetDisposed — попытка открыть событие для списанного или выведенного вагона.
	ErrAssetDisposed = errors.New("asset is disposed or retired")
	// ErrActiveEventExists — у вагона уже есть незавершённое событие.
	ErrActiveEventExists = errors.New("active shopping event already exists for asset")
	// ErrInvalidTransition — запрошенный переход не является легальным ребром.
	ErrInvalidTransition = errors.New("illegal lifecycle transition")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = errors.New("shopping event version conflict")
	// ErrSequenceExhausted — дневной счётчик номеров исчерпан.
	ErrSequenceExhausted = errors.New("daily event number sequence exhausted")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsInvalidTransition проверяет, является ли ошибка нелегальным переходом.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) || errors.Is(err, ErrAssetNotFound)
}

// IsAssetDisposed проверяет, заблокирована ли операция статусом вагона.
func IsAssetDisposed(err error) bool {
	return errors.Is(err, ErrAssetDisposed)
}

// IsValidation проверяет, относится ли ошибка к классу validation:
// операция легальна, но переданные данные некорректны или неполны.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrAssetRequired),
		errors.Is(err, ErrSourceInvalid),
		errors.Is(err, ErrPriorityInvalid),
		errors.Is(err, ErrStateInvalid),
		errors.Is(err, ErrCostNegative),
		errors.Is(err, ErrDispositionRequired),
		errors.Is(err, ErrDispositionInvalid),
		errors.Is(err, ErrCancelReasonRequired),
		errors.Is(err, ErrEstimateAmountInvalid):
		return true
	default:
		return false
	}
}
