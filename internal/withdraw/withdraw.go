// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package withdraw implements the Withdrawal Dispatcher: the
// GET /card/scan action dispatch and the standard/extended pay
// callbacks that consume a scan's k1 and emit the ledger-facing
// internal-transaction-start event.
package withdraw

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/nostr"
	"github.com/lawallet/card-server/internal/store"
	"github.com/lawallet/card-server/models"
)

// Verifier is the subset of tap.Verifier the dispatcher needs.
type Verifier interface {
	Verify(ctx context.Context, p, c string) (models.NTAG, error)
}

// Registry is the subset of the store.Registry the dispatcher needs.
type Registry interface {
	CardByNTAGCid(ctx context.Context, cid string) (models.Card, error)
	CardByUUID(ctx context.Context, uuid string) (models.Card, error)
	LatestHolderDelegation(ctx context.Context, pubKey string) (models.Delegation, error)
	IssuePaymentRequest(ctx context.Context, cardUUID string, response []byte, now time.Time) (string, error)
	ConsumePaymentRequestAndPay(
		ctx context.Context,
		k1 string,
		expirySeconds int,
		now time.Time,
		validate func(ctx context.Context, pr models.PaymentRequest) ([]models.Payment, error),
	) (models.PaymentRequest, []models.Payment, error)
}

// LimitEngine is the subset of limit.Engine the dispatcher needs.
type LimitEngine interface {
	Remaining(ctx context.Context, card models.Card, tokens []string) (map[string]int64, error)
}

// Balances queries a holder's confirmed ledger balance per token.
type Balances interface {
	Balance(ctx context.Context, holderPubKey, token string) (int64, error)
}

// Outbox publishes the internal-transaction-start event a successful pay
// emits.
type Outbox interface {
	Publish(ctx context.Context, event *nostr.Event) error
}

// Config carries the dispatcher's static, deploy-time parameters.
type Config struct {
	// CallbackBaseURL is LAWALLET_API_BASE_URL, the base every callback/
	// tag/payRequest URL in a scan response is built against.
	CallbackBaseURL string
	// FederationID gates X-LaWallet-Action dispatch: only requests whose
	// X-LaWallet-Param carries a matching federationId run the named
	// action instead of the standard scan path.
	FederationID string

	ModulePrivKeyHex string
	ModulePubKeyHex  string

	LedgerPubkey     string
	BTCGatewayPubkey string

	PaymentRequestExpirySeconds int
}

// Dispatcher dispatches scan actions and pay callbacks.
type Dispatcher struct {
	verifier Verifier
	registry Registry
	limits   LimitEngine
	balances Balances
	outbox   Outbox
	cfg      Config
	logger   *logger.Logger
	now      func() time.Time
}

// New constructs a Dispatcher.
func New(verifier Verifier, registry Registry, limits LimitEngine, balances Balances, outbox Outbox, cfg Config, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		verifier: verifier,
		registry: registry,
		limits:   limits,
		balances: balances,
		outbox:   outbox,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// ParseActionParam splits an X-LaWallet-Param header value ("k=v,k=v")
// into a map keyed by fields like tokens/federationId.
func ParseActionParam(header string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(header, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// Scan dispatches GET /card/scan?p&c by scan action. action and params
// come from X-LaWallet-Action / X-LaWallet-Param; action
// only runs when params["federationId"] matches the configured federation,
// otherwise the standard scan always runs regardless of the header.
func (d *Dispatcher) Scan(ctx context.Context, p, c, action string, params map[string]string) (any, error) {
	if action != "" && params["federationId"] != d.cfg.FederationID {
		action = ""
	}

	switch strings.ToLower(action) {
	case "":
		return d.standardScan(ctx, p, c)
	case "extendedscan":
		tokens := splitTokens(params["tokens"])
		return d.extendedScan(ctx, p, c, tokens)
	case "identityquery":
		return d.identityQuery(ctx, p, c)
	case "info":
		return d.info(ctx, p, c)
	case "payrequest":
		return d.payRequest(ctx, p, c)
	default:
		return nil, ErrUnsupportedAction
	}
}

func splitTokens(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ":")
}

// loadEnabledCard runs the tap verify and resolves the enabled, bound card
// backing it. Every scan action needs this preflight.
func (d *Dispatcher) loadEnabledCard(ctx context.Context, p, c string) (models.Card, error) {
	ntag, err := d.verifier.Verify(ctx, p, c)
	if err != nil {
		return models.Card{}, err
	}

	card, err := d.registry.CardByNTAGCid(ctx, ntag.Cid)
	if err != nil {
		return models.Card{}, err
	}

	if card.HolderPubKey == nil {
		return models.Card{}, ErrCardUnbound
	}
	if !card.Enabled {
		return models.Card{}, ErrCardDisabled
	}

	return card, nil
}

func (d *Dispatcher) standardScan(ctx context.Context, p, c string) (models.ScanResponse, error) {
	card, err := d.loadEnabledCard(ctx, p, c)
	if err != nil {
		return models.ScanResponse{}, err
	}

	remaining, err := d.limits.Remaining(ctx, card, []string{"BTC"})
	if err != nil {
		return models.ScanResponse{}, err
	}

	resp := models.ScanResponse{
		Tag:                "withdrawRequest",
		Callback:           d.cfg.CallbackBaseURL + "/card/pay",
		DefaultDescription: "LaWallet",
		MinWithdrawable:    0,
		MaxWithdrawable:    remaining["BTC"],
	}

	return issueK1(d, ctx, card.UUID, resp, func(k1 string, r models.ScanResponse) models.ScanResponse {
		r.K1 = k1
		return r
	})
}

func (d *Dispatcher) extendedScan(ctx context.Context, p, c string, tokens []string) (models.ExtendedScanResponse, error) {
	card, err := d.loadEnabledCard(ctx, p, c)
	if err != nil {
		return models.ExtendedScanResponse{}, err
	}

	remaining, err := d.limits.Remaining(ctx, card, tokens)
	if err != nil {
		return models.ExtendedScanResponse{}, err
	}

	tokenMap := make(map[string]models.TokenWithdrawable, len(tokens))
	for _, t := range tokens {
		tokenMap[t] = models.TokenWithdrawable{MinWithdrawable: 0, MaxWithdrawable: remaining[t]}
	}

	resp := models.ExtendedScanResponse{
		Tag:                "laWallet:withdrawRequest",
		Callback:           d.cfg.CallbackBaseURL + "/card/pay",
		DefaultDescription: "LaWallet",
		Tokens:             tokenMap,
	}

	return issueK1(d, ctx, card.UUID, resp, func(k1 string, r models.ExtendedScanResponse) models.ExtendedScanResponse {
		r.K1 = k1
		return r
	})
}

// issueK1 marshals resp (without its k1 field) for persistence, issues the
// PaymentRequest, and returns resp with k1 attached via attach.
func issueK1[T any](d *Dispatcher, ctx context.Context, cardUUID string, resp T, attach func(string, T) T) (T, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("marshaling scan response: %w", err)
	}

	k1, err := d.registry.IssuePaymentRequest(ctx, cardUUID, raw, d.now())
	if err != nil {
		var zero T
		return zero, err
	}

	return attach(k1, resp), nil
}

func (d *Dispatcher) identityQuery(ctx context.Context, p, c string) (*nostr.Event, error) {
	card, err := d.loadEnabledCard(ctx, p, c)
	if err != nil {
		return nil, err
	}

	event := &nostr.Event{
		CreatedAt: d.now().Unix(),
		Kind:      nostr.KindRegular,
		Tags:      []nostr.Tag{{"t", "identity-query-response"}},
		Content:   *card.HolderPubKey,
	}
	if err := event.Sign(d.cfg.ModulePrivKeyHex); err != nil {
		return nil, fmt.Errorf("signing identity-query-response event: %w", err)
	}
	return event, nil
}

// info runs the same tap-verify preflight as every other action, since
// it is dispatched off the same GET /card/scan?p&c endpoint, but
// tolerates an unbound or disabled card, reporting that state instead of
// failing, since diagnosing an incomplete lifecycle is info's purpose.
func (d *Dispatcher) info(ctx context.Context, p, c string) (models.InfoResponse, error) {
	ntag, err := d.verifier.Verify(ctx, p, c)
	if err != nil {
		return models.InfoResponse{}, err
	}

	resp := models.InfoResponse{Initialized: true}

	card, err := d.registry.CardByNTAGCid(ctx, ntag.Cid)
	if err != nil {
		if err == store.ErrNotFound {
			resp.Associated = ntag.OTC != nil
			return resp, nil
		}
		return models.InfoResponse{}, err
	}

	resp.Associated = true
	resp.Activated = card.HolderPubKey != nil
	if resp.Activated {
		if _, err := d.registry.LatestHolderDelegation(ctx, *card.HolderPubKey); err == nil {
			resp.HasDelegation = true
		}
		// No independent identity-provider-linkage signal exists at this
		// layer; an activated card is presumed to carry an identity.
		resp.HasIdentity = true
	}

	return resp, nil
}

func (d *Dispatcher) payRequest(ctx context.Context, p, c string) (models.PayRequestDescriptor, error) {
	card, err := d.loadEnabledCard(ctx, p, c)
	if err != nil {
		return models.PayRequestDescriptor{}, err
	}

	return models.PayRequestDescriptor{
		Tag:         "payRequest",
		Callback:    fmt.Sprintf("%s/lnurlp/%s/callback", d.cfg.CallbackBaseURL, *card.HolderPubKey),
		MinSendable: 0,
		MaxSendable: 0,
		Metadata:    `[["text/plain","LaWallet"]]`,
	}, nil
}
