package http

import (
	"time"

	"github.com/lawallet/card-server/internal/configchannel"
	"github.com/lawallet/card-server/internal/lifecycle"
	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/nostr"
	"github.com/lawallet/card-server/internal/store"
	"github.com/lawallet/card-server/internal/withdraw"
)

// Config carries the handler's own auth parameters, distinct from the
// domain packages' own Config structs.
type Config struct {
	CardWriterPubkey string
}

// Handler wires the HTTP surface to the domain packages: the Lifecycle
// Orchestrator for /ntag424 and /card, the Withdrawal Dispatcher for
// /card/scan and /card/pay, the Config Channel for /card/data* and
// /card/config/request, and the Registry directly for the admin NTAG
// delete, which no Lifecycle Orchestrator operation covers.
type Handler struct {
	orchestrator *lifecycle.Orchestrator
	registry     *store.Registry
	channel      *configchannel.Channel
	withdraw     *withdraw.Dispatcher

	cfg    Config
	now    func() time.Time
	logger *logger.Logger
}

// NewHandler constructs a Handler.
func NewHandler(
	orchestrator *lifecycle.Orchestrator,
	registry *store.Registry,
	channel *configchannel.Channel,
	dispatcher *withdraw.Dispatcher,
	cfg Config,
	log *logger.Logger,
) *Handler {
	log.Info().Msg("http handler created")
	return &Handler{
		orchestrator: orchestrator,
		registry:     registry,
		channel:      channel,
		withdraw:     dispatcher,
		cfg:          cfg,
		now:          time.Now,
		logger:       log,
	}
}

// clock adapts h.now to [nostr.Clock].
func (h *Handler) clock() nostr.Clock {
	return func() int64 { return h.now().Unix() }
}
