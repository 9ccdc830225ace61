package handler

import (
	"github.com/lawallet/card-server/internal/configchannel"
	"github.com/lawallet/card-server/internal/handler/http"
	"github.com/lawallet/card-server/internal/lifecycle"
	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/store"
	"github.com/lawallet/card-server/internal/withdraw"
)

// Handlers aggregates every transport this application exposes. Only HTTP
// is wired today; the struct stays a thin wrapper around it so a future
// transport can be added the way the gRPC branch once was here.
type Handlers struct {
	HTTP *http.Handler
}

func NewHandlers(
	orchestrator *lifecycle.Orchestrator,
	registry *store.Registry,
	channel *configchannel.Channel,
	dispatcher *withdraw.Dispatcher,
	cfg http.Config,
	logger *logger.Logger,
) *Handlers {
	logger.Info().Msg("creating new handlers...")

	return &Handlers{
		HTTP: http.NewHandler(orchestrator, registry, channel, dispatcher, cfg, logger),
	}
}
