package app

import (
	"github.com/railfleet/sms/internal/service/lifecycle"
)

// createOrchestrator собирает lifecycle orchestrator из хранилища
// и внешних коллабораторов. Ядро не повторяет проигранную конкурентную
// запись, поэтому наружу отдаётся retry-обёртка.
func createOrchestrator(storage runtimeDependencies, deps *Dependencies) lifecycle.Orchestrator {
	core := lifecycle.NewOrchestrator(lifecycle.Deps{
		Events:    storage.events,
		Sequences: storage.sequences,
		Estimates: storage.estimates,
		Log:       storage.translog,
		Outbox:    storage.outboxRepo,
		Assets:    deps.Assets,
		Idle:      deps.Idle,
		Triage:    deps.Triage,
		Limits:    deps.Limits,
		Logger:    deps.Logger,
	})
	return lifecycle.NewRetryableOrchestrator(core, lifecycle.DefaultRetryConfig(), deps.Logger)
}
