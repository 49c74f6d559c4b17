package domain

import "time"

// TransitionRecord описывает одну запись append-only журнала переходов.
type TransitionRecord struct {
	// ProcessType различает процессы, пишущие в общий журнал.
	ProcessType string
	EntityID    string
	// EntityNumber — человекочитаемый номер сущности (SE-...).
	EntityNumber string
	FromState    EventState
	ToState      EventState
	// Reversible — пометка обратимости ребра для отображения в аудите.
	Reversible bool
	Actor      string
	Notes      string
	Occurred   time.Time
}

// ProcessTypeShopping — тип процесса для записей жизненного цикла shopping-событий.
const ProcessTypeShopping = "shopping"
