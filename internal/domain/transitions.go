package domain

// TransitionRule описывает свойства отдельного разрешённого ребра
// таблицы переходов.
type TransitionRule struct {
	// Reversible помечает ребро как обратимое для отображения в аудите:
	// два review-цикла смет плюс все первые прямые рёбра до ESTIMATE_APPROVED.
	Reversible bool
	// RequiresDisposition — переход требует непустого disposition от вызывающего.
	RequiresDisposition bool
	// ShortCycleOnly — ребро доступно только событиям короткого цикла (quick_shop).
	ShortCycleOnly bool
}

// forwardOrder перечисляет статусы в порядке прямого движения процесса.
// CANCELLED в список не входит: он ортогонален и достижим из любого
// нетерминального статуса.
var forwardOrder = []EventState{
	StateEvent,
	StatePacket,
	StateSOW,
	StateShopAssigned,
	StateDispoToShop,
	StateEnroute,
	StateArrived,
	StateEstimateReceived,
	StateEstimateApproved,
	StateWorkInProgress,
	StateFinalEstimateReceived,
	StateFinalApproved,
	StateDispoToDestination,
	StateClosed,
}

// transitionTable — декларативная карта разрешённых переходов.
// Прямые рёбра ведут к непосредственному преемнику; дополнительно
// разрешены два review-цикла и короткий цикл закрытия.
var transitionTable = map[EventState]map[EventState]TransitionRule{
	StateEvent:        {StatePacket: {Reversible: true}},
	StatePacket:       {StateSOW: {Reversible: true}},
	StateSOW:          {StateShopAssigned: {Reversible: true}},
	StateShopAssigned: {StateDispoToShop: {Reversible: true}},
	StateDispoToShop:  {StateEnroute: {Reversible: true}},
	StateEnroute:      {StateArrived: {Reversible: true}},
	StateArrived:      {StateEstimateReceived: {Reversible: true}},
	StateEstimateReceived: {
		StateEstimateApproved: {Reversible: true},
	},
	StateEstimateApproved: {
		StateWorkInProgress: {},
		// Смета возвращена на доработку.
		StateEstimateReceived: {Reversible: true},
	},
	StateWorkInProgress: {StateFinalEstimateReceived: {}},
	StateFinalEstimateReceived: {
		StateFinalApproved: {},
	},
	StateFinalApproved: {
		StateDispoToDestination: {RequiresDisposition: true},
		// Финальная смета возвращена на доработку.
		StateFinalEstimateReceived: {Reversible: true},
		// Короткий цикл мелкого ремонта закрывается без disposition.
		StateClosed: {ShortCycleOnly: true},
	},
	StateDispoToDestination: {StateClosed: {}},
	// У CLOSED и CANCELLED исходящих рёбер нет.
	StateClosed:    {},
	StateCancelled: {},
}

func init() {
	// CANCELLED достижим из каждого нетерминального статуса.
	for _, state := range forwardOrder {
		if TerminalState(state) {
			continue
		}
		transitionTable[state][StateCancelled] = TransitionRule{}
	}
}

// States возвращает статусы в порядке прямого движения процесса,
// включая завершающий CANCELLED.
func States() []EventState {
	states := make([]EventState, 0, len(forwardOrder)+1)
	states = append(states, forwardOrder...)
	states = append(states, StateCancelled)
	return states
}

// ValidState проверяет, что статус известен таблице переходов.
func ValidState(state EventState) bool {
	_, ok := transitionTable[state]
	return ok
}

// TerminalState сообщает, является ли статус терминальным.
func TerminalState(state EventState) bool {
	return state == StateClosed || state == StateCancelled
}

// CheckTransition отвечает на вопрос "легален ли переход from -> to для
// события с данным источником, и что он требует". Возвращает правило ребра
// или ErrInvalidTransition. Требование disposition не проверяется здесь:
// его наличие — ответственность оркестратора (другой класс ошибки).
func CheckTransition(from, to EventState, source EventSource) (TransitionRule, error) {
	edges, ok := transitionTable[from]
	if !ok {
		return TransitionRule{}, ErrInvalidTransition
	}
	rule, ok := edges[to]
	if !ok {
		return TransitionRule{}, ErrInvalidTransition
	}
	if rule.ShortCycleOnly && !source.ShortCycle() {
		return TransitionRule{}, ErrInvalidTransition
	}
	return rule, nil
}
