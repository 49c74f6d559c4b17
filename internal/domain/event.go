package domain

import (
	"fmt"
	"time"
)

// EventState описывает жизненный цикл shopping-события в SMS.
type EventState string

const (
	// StateEvent — событие открыто, вагон помечен для захода в депо.
	StateEvent EventState = "EVENT"
	// StatePacket — собран пакет документов по событию.
	StatePacket EventState = "PACKET"
	// StateSOW — определён объём работ (scope of work).
	StateSOW EventState = "SOW"
	// StateShopAssigned — выбрано депо для ремонта.
	StateShopAssigned EventState = "SHOP_ASSIGNED"
	// StateDispoToShop — оформлено направление вагона в депо.
	StateDispoToShop EventState = "DISPO_TO_SHOP"
	// StateEnroute — вагон в пути к депо.
	StateEnroute EventState = "ENROUTE"
	// StateArrived — вагон прибыл в депо.
	StateArrived EventState = "ARRIVED"
	// StateEstimateReceived — получена предварительная смета ремонта.
	StateEstimateReceived EventState = "ESTIMATE_RECEIVED"
	// StateEstimateApproved — предварительная смета согласована.
	StateEstimateApproved EventState = "ESTIMATE_APPROVED"
	// StateWorkInProgress — ремонт выполняется.
	StateWorkInProgress EventState = "WORK_IN_PROGRESS"
	// StateFinalEstimateReceived — получена финальная смета.
	StateFinalEstimateReceived EventState = "FINAL_ESTIMATE_RECEIVED"
	// StateFinalApproved — финальная смета согласована.
	StateFinalApproved EventState = "FINAL_APPROVED"
	// StateDispoToDestination — назначено направление вагона после ремонта.
	StateDispoToDestination EventState = "DISPO_TO_DESTINATION"
	// StateClosed — событие закрыто, терминальный статус.
	StateClosed EventState = "CLOSED"
	// StateCancelled — событие отменено до завершения цикла, терминальный статус.
	StateCancelled EventState = "CANCELLED"
)

// EventSource объясняет, почему shopping-событие было открыто.
type EventSource string

const (
	// SourceTriage — событие создано из очереди triage.
	SourceTriage EventSource = "triage"
	// SourcePlan — событие создано из планового графика ремонтов.
	SourcePlan EventSource = "plan"
	// SourceManual — событие создано оператором вручную.
	SourceManual EventSource = "manual"
	// SourceQuickShop — короткий цикл мелкого ремонта; допускает
	// закрытие сразу после финального согласования без disposition.
	SourceQuickShop EventSource = "quick_shop"
)

// Valid проверяет, что источник относится к поддерживаемым значениям.
func (s EventSource) Valid() bool {
	switch s {
	case SourceTriage, SourcePlan, SourceManual, SourceQuickShop:
		return true
	default:
		return false
	}
}

// ShortCycle сообщает, разрешён ли для источника короткий цикл
// FINAL_APPROVED -> CLOSED в обход DISPO_TO_DESTINATION.
func (s EventSource) ShortCycle() bool {
	return s == SourceQuickShop
}

// Disposition — назначение вагона по завершении захода в депо.
type Disposition string

const (
	// DispositionToCustomer — вагон возвращается клиенту в коммерческую работу.
	DispositionToCustomer Disposition = "to_customer"
	// DispositionToStorage — вагон уходит в отстой и попадает в triage.
	DispositionToStorage Disposition = "to_storage"
	// DispositionToAnotherShop — вагон направляется в следующее депо (chain shopping).
	DispositionToAnotherShop Disposition = "to_another_shop"
	// DispositionToScrap — вагон списывается; дальнейший процесс вне SMS.
	DispositionToScrap Disposition = "to_scrap"
)

// Valid проверяет, что disposition относится к поддерживаемым значениям.
func (d Disposition) Valid() bool {
	switch d {
	case DispositionToCustomer, DispositionToStorage, DispositionToAnotherShop, DispositionToScrap:
		return true
	default:
		return false
	}
}

// Priority задаёт приоритет обработки события.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid проверяет, что приоритет относится к поддерживаемым значениям.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// CostSummary агрегирует денежные показатели события в минимальных единицах.
type CostSummary struct {
	// EstimatedMinor — последняя поданная смета.
	EstimatedMinor int64
	// ApprovedMinor — согласованная сумма ремонта.
	ApprovedMinor int64
	// InvoicedMinor — фактически выставленная сумма.
	InvoicedMinor int64
}

// VarianceMinor возвращает отклонение счёта от согласованной суммы.
func (c CostSummary) VarianceMinor() int64 {
	return c.InvoicedMinor - c.ApprovedMinor
}

// ShoppingEvent агрегирует состояние одного захода вагона в депо.
type ShoppingEvent struct {
	ID      string
	Number  string
	AssetID string
	State   EventState
	Source  EventSource

	// ShopCode — код назначенного депо; пустой до SHOP_ASSIGNED.
	ShopCode string
	// TargetDate — целевая дата прибытия в депо; нулевое значение = не задана.
	TargetDate time.Time
	Priority   Priority
	Cost       CostSummary

	// Disposition заполняется на переходе в DISPO_TO_DESTINATION.
	Disposition     Disposition
	DispositionRef  string
	DispositionNote string

	// Поля отмены заполняются на переходе в CANCELLED.
	CancelReason string
	CancelledBy  string
	CancelledAt  time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal сообщает, находится ли событие в терминальном статусе.
func (e *ShoppingEvent) IsTerminal() bool {
	return TerminalState(e.State)
}

// ValidateInvariants проверяет базовые инварианты события и возвращает список замечаний.
func (e *ShoppingEvent) ValidateInvariants() []error {
	var errs []error

	if e.AssetID == "" {
		errs = append(errs, ErrAssetRequired)
	}
	if !e.Source.Valid() {
		errs = append(errs, ErrSourceInvalid)
	}
	if !e.Priority.Valid() {
		errs = append(errs, ErrPriorityInvalid)
	}
	if !ValidState(e.State) {
		errs = append(errs, ErrStateInvalid)
	}
	if e.Cost.EstimatedMinor < 0 || e.Cost.ApprovedMinor < 0 || e.Cost.InvoicedMinor < 0 {
		errs = append(errs, ErrCostNegative)
	}
	if e.Disposition != "" && !e.Disposition.Valid() {
		errs = append(errs, ErrDispositionInvalid)
	}
	if e.State == StateDispoToDestination && e.Disposition == "" {
		errs = append(errs, ErrDispositionRequired)
	}
	if e.State == StateCancelled && e.CancelReason == "" {
		errs = append(errs, ErrCancelReasonRequired)
	}

	return errs
}

const (
	// eventNumberPrefix — префикс человекочитаемого номера события.
	eventNumberPrefix = "SE"
	// MaxDailySequence — максимум событий в сутки при пятизначном счётчике.
	MaxDailySequence = 99999
)

// FormatEventNumber собирает номер вида SE-20260212-00007.
func FormatEventNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%05d", eventNumberPrefix, day.UTC().Format("20060102"), seq)
}
