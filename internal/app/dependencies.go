package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/railfleet/sms/internal/domain"
	"github.com/railfleet/sms/internal/service/assets"
	"github.com/railfleet/sms/internal/service/idle"
	"github.com/railfleet/sms/internal/service/repairlimit"
	"github.com/railfleet/sms/internal/service/triage"
)

const (
	defaultMockBookValueMinor = 9_000_000
	defaultMockCeilingMinor   = 3_800_000
)

// Dependencies содержит внешних коллабораторов жизненного цикла.
type Dependencies struct {
	Assets domain.AssetRegistry
	Idle   domain.IdleTracker
	Triage domain.TriageQueue
	Limits domain.RepairLimitCalculator
	Logger *log.Entry
}

// NewDependencies создаёт зависимости приложения.
// NOTE: В production окружении registry, idle tracker, triage queue и
// калькулятор repair limit должны быть заменены на реальные клиенты
// внешних сервисов.
func NewDependencies(logger *log.Entry) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	return &Dependencies{
		Assets: assets.NewMockRegistry(),
		Idle:   idle.NewMockTracker(),
		Triage: triage.NewMockQueue(),
		Limits: repairlimit.NewMockCalculator(defaultMockBookValueMinor, defaultMockCeilingMinor),
		Logger: logger,
	}
}
