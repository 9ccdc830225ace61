// Package configchannel implements the encrypted config channel:
// building the card-data and card-config multi-recipient encrypted
// documents, publishing them onto the event bus, and applying an
// inbound holder-published card-config-change event back onto the
// Registry.
package configchannel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/nostr"
	"github.com/lawallet/card-server/models"
)

// Registry is the subset of the store.Registry the Config Channel needs.
type Registry interface {
	DesignByUUID(ctx context.Context, uuid string) (models.Design, error)
	NTAGByCid(ctx context.Context, cid string) (models.NTAG, error)
	CardsByHolder(ctx context.Context, holderPubKey string) ([]models.Card, error)
	HolderTrustedMerchants(ctx context.Context, pubKey string) ([]models.TrustedMerchant, error)
	ApplyConfig(ctx context.Context, holderPubKey string, cfg models.CardConfigDocument) error
}

// Outbox publishes the channel's card-data/card-config events.
type Outbox interface {
	Publish(ctx context.Context, event *nostr.Event) error
}

// topicCardData and topicCardConfig are the "t" tag values used for the
// two document shapes.
const (
	topicCardData         = "card-data"
	topicCardConfig       = "card-config"
	topicCardConfigChange = "card-config-change"
)

// Channel builds, publishes, and applies the module's two encrypted
// configuration documents.
type Channel struct {
	registry Registry
	outbox   Outbox

	modulePrivHex string
	modulePubHex  string

	logger *logger.Logger
	now    func() int64
}

// New constructs a Channel signing and encrypting as the module identity
// (modulePrivHex, modulePubHex).
func New(registry Registry, outbox Outbox, modulePrivHex, modulePubHex string, log *logger.Logger) *Channel {
	return &Channel{
		registry:      registry,
		outbox:        outbox,
		modulePrivHex: modulePrivHex,
		modulePubHex:  modulePubHex,
		logger:        log,
		now:           func() int64 { return time.Now().Unix() },
	}
}

// BuildCardDataDocument assembles the card-data content for
// every card holderPubKey owns.
func (c *Channel) BuildCardDataDocument(ctx context.Context, holderPubKey string) (models.CardDataDocument, error) {
	cards, err := c.registry.CardsByHolder(ctx, holderPubKey)
	if err != nil {
		return nil, err
	}

	doc := make(models.CardDataDocument, len(cards))
	designs := make(map[string]models.Design)

	for _, card := range cards {
		design, err := c.designForCard(ctx, card, designs)
		if err != nil {
			return nil, err
		}
		doc[card.UUID] = models.CardDataEntry{Design: design}
	}

	return doc, nil
}

// designForCard resolves a card's Design by way of its backing NTAG's
// DesignUUID, using cache as a per-call memo keyed by design uuid (several
// cards commonly share one Design).
func (c *Channel) designForCard(ctx context.Context, card models.Card, cache map[string]models.Design) (models.Design, error) {
	ntag, err := c.registry.NTAGByCid(ctx, card.NTAG424Cid)
	if err != nil {
		return models.Design{}, err
	}

	if d, ok := cache[ntag.DesignUUID]; ok {
		return d, nil
	}

	d, err := c.registry.DesignByUUID(ctx, ntag.DesignUUID)
	if err != nil {
		return models.Design{}, err
	}
	cache[ntag.DesignUUID] = d
	return d, nil
}

// BuildCardConfigDocument assembles the card-config content
// for holderPubKey: its trusted merchants and every owned card's editable
// fields and limits.
func (c *Channel) BuildCardConfigDocument(ctx context.Context, holderPubKey string) (models.CardConfigDocument, error) {
	cards, err := c.registry.CardsByHolder(ctx, holderPubKey)
	if err != nil {
		return models.CardConfigDocument{}, err
	}

	merchants, err := c.registry.HolderTrustedMerchants(ctx, holderPubKey)
	if err != nil {
		return models.CardConfigDocument{}, err
	}

	doc := models.CardConfigDocument{
		TrustedMerchants: make([]models.TrustedMerchantRef, 0, len(merchants)),
		Cards:            make(map[string]models.CardConfig, len(cards)),
	}
	for _, m := range merchants {
		doc.TrustedMerchants = append(doc.TrustedMerchants, models.TrustedMerchantRef{PubKey: m.MerchantPubKey})
	}

	for _, card := range cards {
		name, description := card.Name, card.Description
		status := models.CardStatusDisabled
		if card.Enabled {
			status = models.CardStatusEnabled
		}

		limits := make([]models.LimitConfig, 0, len(card.Limits))
		for _, l := range card.Limits {
			limits = append(limits, models.LimitConfig{
				Name:        l.Name,
				Description: l.Description,
				Token:       l.Token,
				Amount:      l.Amount,
				Delta:       l.Delta,
			})
		}

		doc.Cards[card.UUID] = models.CardConfig{
			Name:        &name,
			Description: &description,
			Status:      &status,
			Limits:      limits,
		}
	}

	return doc, nil
}

// PublishCardData builds and publishes holderPubKey's card-data document.
func (c *Channel) PublishCardData(ctx context.Context, holderPubKey string) error {
	doc, err := c.BuildCardDataDocument(ctx, holderPubKey)
	if err != nil {
		return err
	}

	event, err := c.buildEnvelopeEvent(topicCardData, holderPubKey, doc)
	if err != nil {
		return err
	}

	return c.outbox.Publish(ctx, event)
}

// PublishCardConfig builds and publishes holderPubKey's card-config
// document. eTag, if non-empty, e-tags the event back to the request that
// triggered this republish.
func (c *Channel) PublishCardConfig(ctx context.Context, holderPubKey, eTag string) error {
	doc, err := c.BuildCardConfigDocument(ctx, holderPubKey)
	if err != nil {
		return err
	}

	event, err := c.buildEnvelopeEvent(topicCardConfig, holderPubKey, doc)
	if err != nil {
		return err
	}
	if eTag != "" {
		event.Tags = append(event.Tags, nostr.Tag{"e", eTag})
		if err := event.Sign(c.modulePrivHex); err != nil {
			return fmt.Errorf("re-signing card-config event after e-tag: %w", err)
		}
	}

	return c.outbox.Publish(ctx, event)
}

// CurrentCardConfig returns holderPubKey's card-config document without
// publishing anything, for the synchronous POST /card/config/request
// response.
func (c *Channel) CurrentCardConfig(ctx context.Context, holderPubKey string) (models.CardConfigDocument, error) {
	return c.BuildCardConfigDocument(ctx, holderPubKey)
}

// buildEnvelopeEvent builds and signs a kind-31111 multi-recipient
// encrypted event for topic, addressed to both holderPubKey and the
// module itself so each of the two recipients can decrypt
// independently.
func (c *Channel) buildEnvelopeEvent(topic, holderPubKey string, document any) (*nostr.Event, error) {
	payload, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s document: %w", topic, err)
	}

	env, err := nostr.EncryptMany(c.modulePrivHex, payload, []string{holderPubKey, c.modulePubHex})
	if err != nil {
		return nil, fmt.Errorf("encrypting %s document: %w", topic, err)
	}

	content, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s envelope: %w", topic, err)
	}

	event := &nostr.Event{
		CreatedAt: c.now(),
		Kind:      nostr.KindParameterizedReplace,
		Tags: []nostr.Tag{
			{"t", topic},
			{"d", holderPubKey + ":" + topic},
		},
		Content: string(content),
	}

	if err := event.Sign(c.modulePrivHex); err != nil {
		return nil, fmt.Errorf("signing %s event: %w", topic, err)
	}

	return event, nil
}

// Handle implements bus.Handler for inbound card-config-change events,
// applying the holder's desired configuration back onto the Registry.
// Every event reaching Handle comes off the subscription feed rather than
// an authenticated HTTP body, so it runs the same signed-event preflight
// (signature, max-age, delegation resolution) the HTTP handlers run before
// trusting a request.
func (c *Channel) Handle(ctx context.Context, event *nostr.Event) error {
	log := logger.FromContext(ctx)

	tag := event.FindTag("t")
	if event.Kind != nostr.KindRegular || tag == nil || len(tag) < 2 || tag[1] != topicCardConfigChange {
		return ErrUnsupportedEvent
	}

	holderPubKey, err := nostr.Preflight(event, c.now, "")
	if err != nil {
		log.Err(err).Str("func", "Channel.Handle").Str("event_id", event.ID).Msg("preflight failed for card-config-change")
		return err
	}

	plaintext, err := nostr.Decrypt(c.modulePrivHex, event.PubKey, event.Content)
	if err != nil {
		log.Err(err).Str("func", "Channel.Handle").Str("event_id", event.ID).Msg("failed to decrypt card-config-change")
		return err
	}

	var cfg models.CardConfigDocument
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedConfig, err)
	}

	if err := c.registry.ApplyConfig(ctx, holderPubKey, cfg); err != nil {
		return err
	}

	return c.PublishCardConfig(ctx, holderPubKey, event.ID)
}
