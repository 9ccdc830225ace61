// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package lifecycle implements the Lifecycle Orchestrator: Initialize,
// Associate, Activate, Card-Transfer, and the admin-reset request/claim
// saga, each composing the SUN Verifier, the Card Registry, NIP-26
// delegation, and the Encrypted Config Channel into the single state
// transition its name describes.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/nostr"
	"github.com/lawallet/card-server/internal/utils"
	"github.com/lawallet/card-server/models"
)

// Verifier is the subset of tap.Verifier the Orchestrator needs.
type Verifier interface {
	Verify(ctx context.Context, p, c string) (models.NTAG, error)
}

// Registry is the subset of store.Registry the Orchestrator needs.
type Registry interface {
	CreateNTAG(ctx context.Context, cid string, ctr int64, moduleK1Hex string, design models.DesignRef) (models.NTAG, error)
	NTAGByCid(ctx context.Context, cid string) (models.NTAG, error)
	SetOTC(ctx context.Context, cid, otc string) error
	FindAvailableNTAGByOTC(ctx context.Context, otc string) (models.NTAG, error)
	DesignByUUID(ctx context.Context, uuid string) (models.Design, error)
	UpsertHolder(ctx context.Context, pubKey string, delegation models.Delegation, defaultMerchants []string) error
	CreateCard(ctx context.Context, ntagCid, holderPubKey, designName, designDescription string, defaultLimits []models.Limit) (models.Card, error)
	CardByNTAGCid(ctx context.Context, cid string) (models.Card, error)
	TransferCard(ctx context.Context, uuid, fromPubKey, toPubKey string) error
	UpsertResetToken(ctx context.Context, rt models.ResetToken) error
	ResetTokenByToken(ctx context.Context, token string) (models.ResetToken, error)
	ClaimResetToken(ctx context.Context, token string, oldHolderPubKey, newHolderPubKey string, newDelegation models.Delegation) error
}

// ConfigChannel is the subset of configchannel.Channel the Orchestrator
// needs to push a newly activated or transferred card's documents.
type ConfigChannel interface {
	PublishCardData(ctx context.Context, holderPubKey string) error
	PublishCardConfig(ctx context.Context, holderPubKey, eTag string) error
}

// IdentityProvider is the external service admin-reset-claim's best-effort
// final step calls.
type IdentityProvider interface {
	TransferIdentity(ctx context.Context, oldPubKey, newPubKey string) (string, error)
}

// Outbox publishes the best-effort events admin-reset-claim emits after
// its point of no return.
type Outbox interface {
	Publish(ctx context.Context, event *nostr.Event) error
}

// Config is the Orchestrator's static configuration, resolved once at
// startup from the process's [config.StructuredConfig].
type Config struct {
	ModulePrivKeyHex    string
	ModulePubKeyHex     string
	ModuleK1Hex         string
	CardWriterPubkey    string
	AdminPubkeys        []string
	LedgerPublicKey     string
	BTCGatewayPublicKey string
	DefaultLimits       []models.Limit
	DefaultMerchants    []string
	ResetTokenTTL       time.Duration
}

// Orchestrator drives the card lifecycle state machine.
type Orchestrator struct {
	verifier         Verifier
	registry         Registry
	channel          ConfigChannel
	identityProvider IdentityProvider
	outbox           Outbox

	cfg Config

	logger *logger.Logger
	now    func() time.Time
	admins map[string]bool
}

// New constructs an Orchestrator.
func New(verifier Verifier, registry Registry, channel ConfigChannel, identityProvider IdentityProvider, outbox Outbox, cfg Config, log *logger.Logger) *Orchestrator {
	admins := make(map[string]bool, len(cfg.AdminPubkeys))
	for _, p := range cfg.AdminPubkeys {
		admins[p] = true
	}

	return &Orchestrator{
		verifier:         verifier,
		registry:         registry,
		channel:          channel,
		identityProvider: identityProvider,
		outbox:           outbox,
		cfg:              cfg,
		logger:           log,
		now:              time.Now,
		admins:           admins,
	}
}

// clock adapts o.now to [nostr.Clock].
func (o *Orchestrator) clock() nostr.Clock {
	return func() int64 { return o.now().Unix() }
}

// Initialize provisions a fresh NTAG from a writer-signed event. Idempotent
// on a duplicate cid.
func (o *Orchestrator) Initialize(ctx context.Context, event *nostr.Event) (models.NTAG, error) {
	if _, err := nostr.Preflight(event, o.clock(), o.cfg.CardWriterPubkey); err != nil {
		return models.NTAG{}, err
	}

	var req models.InitializeRequest
	if err := json.Unmarshal([]byte(event.Content), &req); err != nil {
		return models.NTAG{}, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	if req.Design.Name == "" && req.Design.UUID == "" {
		return models.NTAG{}, ErrMissingDesign
	}

	return o.registry.CreateNTAG(ctx, req.Cid, req.Ctr, o.cfg.ModuleK1Hex, req.Design)
}

// Associate binds a one-time association code to the NTAG a physical tap
// (p, c) resolves, authorized by a writer-signed event.
func (o *Orchestrator) Associate(ctx context.Context, event *nostr.Event, p, c string) error {
	if _, err := nostr.Preflight(event, o.clock(), o.cfg.CardWriterPubkey); err != nil {
		return err
	}

	var req models.AssociateRequest
	if err := json.Unmarshal([]byte(event.Content), &req); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	ntag, err := o.verifier.Verify(ctx, p, c)
	if err != nil {
		return err
	}

	return o.registry.SetOTC(ctx, ntag.Cid, req.OTC)
}

// Activate claims an available NTAG by its association code from a
// holder-signed event, establishing the holder's first delegation and
// creating the Card.
func (o *Orchestrator) Activate(ctx context.Context, event *nostr.Event) (*nostr.Event, error) {
	if _, err := nostr.Preflight(event, o.clock(), ""); err != nil {
		return nil, err
	}

	var req models.ActivateRequest
	if err := json.Unmarshal([]byte(event.Content), &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	delegation, err := o.buildDelegation(event.PubKey, req.Delegation)
	if err != nil {
		return nil, err
	}

	ntag, err := o.registry.FindAvailableNTAGByOTC(ctx, req.OTC)
	if err != nil {
		return nil, err
	}

	design, err := o.registry.DesignByUUID(ctx, ntag.DesignUUID)
	if err != nil {
		return nil, err
	}

	if err := o.registry.UpsertHolder(ctx, delegation.HolderPubKey, delegation, o.cfg.DefaultMerchants); err != nil {
		return nil, err
	}

	card, err := o.registry.CreateCard(ctx, ntag.Cid, delegation.HolderPubKey, design.Name, design.Description, o.cfg.DefaultLimits)
	if err != nil {
		return nil, err
	}

	if err := o.channel.PublishCardData(ctx, delegation.HolderPubKey); err != nil {
		o.logger.Err(err).Str("func", "Orchestrator.Activate").Msg("failed to publish card-data after activation")
	}
	if err := o.channel.PublishCardConfig(ctx, delegation.HolderPubKey, ""); err != nil {
		o.logger.Err(err).Str("func", "Orchestrator.Activate").Msg("failed to publish card-config after activation")
	}

	return o.buildResponseEvent("card-activation-response", card, event)
}

// Transfer moves card ownership: the new holder's acceptance event
// references the current holder's donation event, and once both verify,
// ownership moves.
func (o *Orchestrator) Transfer(ctx context.Context, acceptance *nostr.Event) (*nostr.Event, error) {
	if _, err := nostr.Preflight(acceptance, o.clock(), ""); err != nil {
		return nil, err
	}

	var req models.TransferAcceptanceRequest
	if err := json.Unmarshal([]byte(acceptance.Content), &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	pTags := acceptance.FindTags("p")
	if len(pTags) < 2 || len(pTags[1]) < 2 {
		return nil, ErrMissingDonorTag
	}
	donorPubKey := pTags[1][1]

	donation := req.DonationEvent
	if err := donation.VerifySignature(); err != nil {
		return nil, err
	}
	if donation.PubKey != donorPubKey {
		return nil, ErrDonorMismatch
	}

	newDelegation, err := o.buildDelegation(acceptance.PubKey, req.Delegation)
	if err != nil {
		return nil, err
	}

	plaintext, err := nostr.Decrypt(o.cfg.ModulePrivKeyHex, donorPubKey, donation.Content)
	if err != nil {
		return nil, err
	}
	cardUUID := strings.TrimSpace(string(plaintext))

	if err := o.registry.UpsertHolder(ctx, newDelegation.HolderPubKey, newDelegation, nil); err != nil {
		return nil, err
	}
	if err := o.registry.TransferCard(ctx, cardUUID, donorPubKey, newDelegation.HolderPubKey); err != nil {
		return nil, err
	}

	if err := o.channel.PublishCardData(ctx, newDelegation.HolderPubKey); err != nil {
		o.logger.Err(err).Str("func", "Orchestrator.Transfer").Msg("failed to publish card-data after transfer")
	}
	if err := o.channel.PublishCardConfig(ctx, newDelegation.HolderPubKey, ""); err != nil {
		o.logger.Err(err).Str("func", "Orchestrator.Transfer").Msg("failed to publish card-config after transfer")
	}

	return o.buildResponseEvent("card-transfer-response", map[string]string{"cardUuid": cardUUID}, acceptance)
}

// AdminResetRequest lets an admin tap their own card and the target card
// to receive a nonce the target's new holder must present to
// AdminResetClaim.
func (o *Orchestrator) AdminResetRequest(ctx context.Context, event *nostr.Event) (*nostr.Event, error) {
	adminPubKey, err := nostr.Preflight(event, o.clock(), "")
	if err != nil {
		return nil, err
	}
	if !o.admins[adminPubKey] {
		return nil, ErrNotAdmin
	}

	var req models.AdminResetRequestBody
	if err := json.Unmarshal([]byte(event.Content), &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	if _, err := o.verifier.Verify(ctx, req.AdminP, req.AdminC); err != nil {
		return nil, err
	}
	targetNTAG, err := o.verifier.Verify(ctx, req.TargetP, req.TargetC)
	if err != nil {
		return nil, err
	}

	targetCard, err := o.registry.CardByNTAGCid(ctx, targetNTAG.Cid)
	if err != nil {
		return nil, err
	}
	if targetCard.HolderPubKey == nil {
		return nil, ErrTargetUnbound
	}
	targetHolderPubKey := *targetCard.HolderPubKey

	if targetHolderPubKey == adminPubKey {
		return nil, ErrSameHolder
	}
	if o.admins[targetHolderPubKey] {
		return nil, ErrTargetIsAdmin
	}

	nonceUUID := utils.NewUUIDGenerator().Generate()
	nonce, err := utils.UUID2SUUID(nonceUUID)
	if err != nil {
		return nil, err
	}

	if err := o.registry.UpsertResetToken(ctx, models.ResetToken{
		HolderPubKey: targetHolderPubKey,
		Token:        nonce,
		CreatedAt:    o.now(),
	}); err != nil {
		return nil, err
	}

	return o.buildResponseEvent("admin-reset-request-response", models.AdminResetRequestResponse{Nonce: nonce}, event)
}

// AdminResetClaim lets the new holder present the reset nonce and a fresh
// delegation to complete an admin reset. Past the token deletion inside
// [Registry.ClaimResetToken], the remaining steps are best-effort and
// independently reported.
func (o *Orchestrator) AdminResetClaim(ctx context.Context, event *nostr.Event) (*nostr.Event, error) {
	if _, err := nostr.Preflight(event, o.clock(), ""); err != nil {
		return nil, err
	}

	var req models.AdminResetClaimRequest
	if err := json.Unmarshal([]byte(event.Content), &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	rt, err := o.registry.ResetTokenByToken(ctx, req.OTC)
	if err != nil {
		return nil, err
	}
	if o.now().Sub(rt.CreatedAt) > o.cfg.ResetTokenTTL {
		return nil, ErrResetTokenExpired
	}

	newDelegation, err := o.buildDelegation(event.PubKey, req.Delegation)
	if err != nil {
		return nil, err
	}

	oldHolderPubKey := rt.HolderPubKey
	newHolderPubKey := newDelegation.HolderPubKey

	if err := o.registry.ClaimResetToken(ctx, req.OTC, oldHolderPubKey, newHolderPubKey, newDelegation); err != nil {
		return nil, err
	}

	resp := models.AdminResetClaimResponse{}

	if err := o.publishFundsTransfer(ctx, oldHolderPubKey, newHolderPubKey); err != nil {
		o.logger.Err(err).Str("func", "Orchestrator.AdminResetClaim").Msg("failed to publish funds-transfer event")
	} else {
		resp.FundsTransferred = true
	}

	if err := o.publishIdentityTransferOK(ctx, oldHolderPubKey, newHolderPubKey); err != nil {
		o.logger.Err(err).Str("func", "Orchestrator.AdminResetClaim").Msg("failed to publish identity-transfer-ok event")
	} else {
		resp.IdentityTransferred = true
	}

	if o.identityProvider != nil {
		name, err := o.identityProvider.TransferIdentity(ctx, oldHolderPubKey, newHolderPubKey)
		if err != nil {
			o.logger.Err(err).Str("func", "Orchestrator.AdminResetClaim").Msg("identity provider transfer failed")
		} else {
			resp.IdentityProviderUpdated = true
			resp.IdentityProviderName = name
		}
	}

	if err := o.channel.PublishCardData(ctx, newHolderPubKey); err != nil {
		o.logger.Err(err).Str("func", "Orchestrator.AdminResetClaim").Msg("failed to publish card-data after reset claim")
	}
	if err := o.channel.PublishCardConfig(ctx, newHolderPubKey, ""); err != nil {
		o.logger.Err(err).Str("func", "Orchestrator.AdminResetClaim").Msg("failed to publish card-config after reset claim")
	}

	return o.buildResponseEvent("admin-reset-claim-response", resp, event)
}

func (o *Orchestrator) publishFundsTransfer(ctx context.Context, oldHolderPubKey, newHolderPubKey string) error {
	payload := map[string]string{"from": oldHolderPubKey, "to": newHolderPubKey}
	event, err := o.buildTopicEvent("card-reset-funds-transfer", payload, []nostr.Tag{{"p", o.cfg.LedgerPublicKey}})
	if err != nil {
		return err
	}
	return o.outbox.Publish(ctx, event)
}

func (o *Orchestrator) publishIdentityTransferOK(ctx context.Context, oldHolderPubKey, newHolderPubKey string) error {
	payload := map[string]string{"from": oldHolderPubKey, "to": newHolderPubKey}
	event, err := o.buildTopicEvent("identity-transfer-ok", payload, []nostr.Tag{{"p", newHolderPubKey}})
	if err != nil {
		return err
	}
	return o.outbox.Publish(ctx, event)
}

// buildDelegation validates req against delegateePubKey (the event's own
// signer) and returns the Delegation row it authorizes, keyed by the
// delegator's own pubkey as the Holder identity.
func (o *Orchestrator) buildDelegation(delegateePubKey string, req models.DelegationRequest) (models.Delegation, error) {
	if err := nostr.VerifyDelegation(req.DelegatorPubKey, delegateePubKey, req.Conditions, req.Token); err != nil {
		return models.Delegation{}, err
	}

	conditions, err := nostr.ParseConditions(req.Conditions)
	if err != nil {
		return models.Delegation{}, err
	}

	var since, until int64
	if conditions.CreatedAfter != nil {
		since = *conditions.CreatedAfter
	}
	if conditions.CreatedBefor != nil {
		until = *conditions.CreatedBefor
	}

	return models.Delegation{
		HolderPubKey:    req.DelegatorPubKey,
		DelegatorPubKey: req.DelegatorPubKey,
		Conditions:      req.Conditions,
		DelegationToken: req.Token,
		Since:           since,
		Until:           until,
	}, nil
}

// buildResponseEvent signs a module-issued response event e-tagged back to
// request, the shape every lifecycle operation returns.
func (o *Orchestrator) buildResponseEvent(topic string, payload any, request *nostr.Event) (*nostr.Event, error) {
	tags := []nostr.Tag{{"t", topic}}
	if request != nil && request.ID != "" {
		tags = append(tags, nostr.Tag{"e", request.ID})
	}
	return o.signTopicEvent(topic, payload, tags)
}

func (o *Orchestrator) buildTopicEvent(topic string, payload any, extraTags []nostr.Tag) (*nostr.Event, error) {
	tags := append([]nostr.Tag{{"t", topic}}, extraTags...)
	return o.signTopicEvent(topic, payload, tags)
}

func (o *Orchestrator) signTopicEvent(topic string, payload any, tags []nostr.Tag) (*nostr.Event, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", topic, err)
	}

	event := &nostr.Event{
		CreatedAt: o.now().Unix(),
		Kind:      nostr.KindRegular,
		Tags:      tags,
		Content:   string(content),
	}
	if err := event.Sign(o.cfg.ModulePrivKeyHex); err != nil {
		return nil, fmt.Errorf("signing %s event: %w", topic, err)
	}
	return event, nil
}
