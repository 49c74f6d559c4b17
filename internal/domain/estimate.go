package domain

import "time"

// EstimateLineItem — одна позиция поданной сметы.
type EstimateLineItem struct {
	// Code — код работы по справочнику депо.
	Code string
	// Description — человекочитаемое описание работы.
	Description string
	// AmountMinor — стоимость позиции в минимальных денежных единицах.
	AmountMinor int64
}

// EstimateSubmission фиксирует одну подачу сметы по событию: поданную
// сумму рядом с внешне рассчитанным потолком стоимости ремонта.
// Запись неизменяема после создания; сравнение с потолком носит
// информационный характер и никогда не блокирует жизненный цикл.
type EstimateSubmission struct {
	ID      string
	EventID string
	// SubmittedMinor — итог поданной сметы.
	SubmittedMinor int64
	// BookValueMinor — балансовая стоимость вагона на момент подачи.
	BookValueMinor int64
	// CeilingMinor — рассчитанный потолок стоимости ремонта.
	CeilingMinor int64
	// ExceedsLimit = true, если поданная сумма превышает потолок.
	ExceedsLimit bool
	LineItems    []EstimateLineItem
	Notes        string
	CreatedAt    time.Time
}
