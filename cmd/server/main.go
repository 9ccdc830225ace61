package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lawallet/card-server/internal/bus"
	"github.com/lawallet/card-server/internal/config"
	"github.com/lawallet/card-server/internal/configchannel"
	"github.com/lawallet/card-server/internal/handler"
	"github.com/lawallet/card-server/internal/handler/http"
	"github.com/lawallet/card-server/internal/identityprovider"
	"github.com/lawallet/card-server/internal/ledger"
	"github.com/lawallet/card-server/internal/lifecycle"
	"github.com/lawallet/card-server/internal/limit"
	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/server"
	"github.com/lawallet/card-server/internal/store"
	"github.com/lawallet/card-server/internal/tap"
	"github.com/lawallet/card-server/internal/withdraw"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

// subscriptionKind is the Nostr event kind holder-published
// card-config-change events arrive as.
const subscriptionKind = 1112

// subscriptionTopic is the "t" tag of the events the Inbound Subscription
// Loop consumes.
const subscriptionTopic = "card-config-change"

func main() {
	printBuildInfo()

	log := logger.NewLogger("card-server")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Any("config", cfg).Msg("received configs")

	ctx := context.Background()

	db, err := store.NewConnectPostgres(ctx, cfg.Storage.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("error running migrations")
	}

	registry := store.NewRegistry(db, log)

	verifier := tap.New(registry, cfg.Server.AESKeyHex, log)
	limits := limit.New(registry, log)

	outbox, err := bus.NewHTTPOutbox(cfg.Federation.APIBaseURL, cfg.Server.RequestTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating outbox")
	}
	subscriber, err := bus.NewHTTPSubscriber(cfg.Federation.APIBaseURL, 5*time.Second, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating subscriber")
	}

	identity, err := identityprovider.New(cfg.App.IdentityProviderAPIBase)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating identity provider client")
	}
	ledgerClient, err := ledger.New(cfg.Federation.APIBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating ledger client")
	}

	channel := configchannel.New(registry, outbox, cfg.Nostr.PrivateKey, cfg.Nostr.PublicKey, log)

	defaultLimits, err := config.ParseDefaultLimits(cfg.App.DefaultLimits)
	if err != nil {
		log.Fatal().Err(err).Msg("error parsing default limits")
	}

	orchestrator := lifecycle.New(verifier, registry, channel, identity, outbox, lifecycle.Config{
		ModulePrivKeyHex:    cfg.Nostr.PrivateKey,
		ModulePubKeyHex:     cfg.Nostr.PublicKey,
		ModuleK1Hex:         cfg.Server.AESKeyHex,
		CardWriterPubkey:    cfg.App.CardWriterPubkey,
		AdminPubkeys:        config.ParsePubkeyList(cfg.App.AdminPubkeys),
		LedgerPublicKey:     cfg.App.LedgerPublicKey,
		BTCGatewayPublicKey: cfg.App.BTCGatewayPublicKey,
		DefaultLimits:       defaultLimits,
		DefaultMerchants:    config.ParsePubkeyList(cfg.App.DefaultTrustedMerchants),
		ResetTokenTTL:       time.Duration(cfg.App.ResetTokenExpirySeconds) * time.Second,
	}, log)

	dispatcher := withdraw.New(verifier, registry, limits, ledgerClient, outbox, withdraw.Config{
		CallbackBaseURL:             cfg.Federation.APIBaseURL,
		FederationID:                cfg.Federation.ID,
		ModulePrivKeyHex:            cfg.Nostr.PrivateKey,
		ModulePubKeyHex:             cfg.Nostr.PublicKey,
		LedgerPubkey:                cfg.App.LedgerPublicKey,
		BTCGatewayPubkey:            cfg.App.BTCGatewayPublicKey,
		PaymentRequestExpirySeconds: cfg.App.PaymentRequestExpirySeconds,
	}, log)

	handlers, err := server.NewServer(
		handler.NewHandlers(orchestrator, registry, channel, dispatcher, http.Config{
			CardWriterPubkey: cfg.App.CardWriterPubkey,
		}, log),
		cfg.Server,
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server")
	}

	loop := bus.New(subscriber, channel, registry, log, "card-config-change", cfg.Nostr.PublicKey, subscriptionTopic, []int{subscriptionKind})
	loop.Start(ctx)
	defer loop.Stop()

	handlers.RunServer()
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
