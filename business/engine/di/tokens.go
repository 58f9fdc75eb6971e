// Package di contains dependency injection tokens for the engine context.
package di

import (
	"github.com/flowsniper/flowsniper/business/engine/app"
	"github.com/flowsniper/flowsniper/business/engine/infra/flowlog"
	"github.com/flowsniper/flowsniper/internal/di"
)

// Public service tokens - exposed to the control surface
var (
	Scheduler = di.NewToken[*app.Scheduler]("engine.Scheduler")
	FlowLog   = di.NewToken[*flowlog.Sink]("engine.FlowLog")
)

// Private dependency tokens - internal to engine module
var (
	Trigger = di.NewToken[app.ScanTrigger]("engine:trigger")
	Store   = di.NewToken[app.ParamsStore]("engine:store")
)

// Helper functions for type-safe access
func GetScheduler(c di.ServiceRegistry) *app.Scheduler {
	return di.GetToken(c, Scheduler)
}

func GetFlowLog(c di.ServiceRegistry) *flowlog.Sink {
	return di.GetToken(c, FlowLog)
}

func GetTrigger(c di.ServiceRegistry) app.ScanTrigger {
	return di.GetToken(c, Trigger)
}

func GetStore(c di.ServiceRegistry) app.ParamsStore {
	return di.GetToken(c, Store)
}
