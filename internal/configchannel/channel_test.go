package configchannel

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/nostr"
	"github.com/lawallet/card-server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	ntags       map[string]models.NTAG
	designs     map[string]models.Design
	cards       map[string][]models.Card
	merchants   map[string][]models.TrustedMerchant
	appliedCfg  models.CardConfigDocument
	appliedFor  string
	applyErr    error
}

func (f *fakeRegistry) DesignByUUID(ctx context.Context, uuid string) (models.Design, error) {
	d, ok := f.designs[uuid]
	if !ok {
		return models.Design{}, assert.AnError
	}
	return d, nil
}

func (f *fakeRegistry) NTAGByCid(ctx context.Context, cid string) (models.NTAG, error) {
	n, ok := f.ntags[cid]
	if !ok {
		return models.NTAG{}, assert.AnError
	}
	return n, nil
}

func (f *fakeRegistry) CardsByHolder(ctx context.Context, holderPubKey string) ([]models.Card, error) {
	return f.cards[holderPubKey], nil
}

func (f *fakeRegistry) HolderTrustedMerchants(ctx context.Context, pubKey string) ([]models.TrustedMerchant, error) {
	return f.merchants[pubKey], nil
}

func (f *fakeRegistry) ApplyConfig(ctx context.Context, holderPubKey string, cfg models.CardConfigDocument) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.appliedFor = holderPubKey
	f.appliedCfg = cfg
	return nil
}

type fakeOutbox struct {
	published []*nostr.Event
}

func (f *fakeOutbox) Publish(ctx context.Context, event *nostr.Event) error {
	f.published = append(f.published, event)
	return nil
}

func randPrivHex(t *testing.T, seed byte) string {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed
	}
	return hex.EncodeToString(raw)
}

func TestBuildCardDataDocument(t *testing.T) {
	reg := &fakeRegistry{
		ntags:   map[string]models.NTAG{"cid1": {Cid: "cid1", DesignUUID: "design1"}},
		designs: map[string]models.Design{"design1": {UUID: "design1", Name: "Classic"}},
		cards: map[string][]models.Card{
			"holder1": {{UUID: "card1", NTAG424Cid: "cid1"}},
		},
	}

	ch := New(reg, &fakeOutbox{}, randPrivHex(t, 0x01), "", logger.Nop())

	doc, err := ch.BuildCardDataDocument(context.Background(), "holder1")
	require.NoError(t, err)
	require.Len(t, doc, 1)
	assert.Equal(t, "Classic", doc["card1"].Design.Name)
}

func TestBuildCardConfigDocument(t *testing.T) {
	reg := &fakeRegistry{
		cards: map[string][]models.Card{
			"holder1": {{UUID: "card1", Name: "Wallet", Description: "d", Enabled: true, Limits: []models.Limit{
				{Name: "daily", Token: "BTC", Amount: 1000, Delta: 86400},
			}}},
		},
		merchants: map[string][]models.TrustedMerchant{
			"holder1": {{HolderPubKey: "holder1", MerchantPubKey: "merchant1"}},
		},
	}

	ch := New(reg, &fakeOutbox{}, randPrivHex(t, 0x02), "", logger.Nop())

	doc, err := ch.BuildCardConfigDocument(context.Background(), "holder1")
	require.NoError(t, err)
	require.Len(t, doc.TrustedMerchants, 1)
	assert.Equal(t, "merchant1", doc.TrustedMerchants[0].PubKey)
	require.Contains(t, doc.Cards, "card1")
	assert.Equal(t, models.CardStatusEnabled, *doc.Cards["card1"].Status)
	require.Len(t, doc.Cards["card1"].Limits, 1)
	assert.Equal(t, int64(1000), doc.Cards["card1"].Limits[0].Amount)
}

func TestPublishCardData(t *testing.T) {
	holderPub := mustPubKey(t, randPrivHex(t, 0x07))

	reg := &fakeRegistry{
		ntags:   map[string]models.NTAG{"cid1": {Cid: "cid1", DesignUUID: "design1"}},
		designs: map[string]models.Design{"design1": {UUID: "design1", Name: "Classic"}},
		cards:   map[string][]models.Card{holderPub: {{UUID: "card1", NTAG424Cid: "cid1"}}},
	}
	outbox := &fakeOutbox{}

	modulePriv := randPrivHex(t, 0x03)
	modulePub := mustPubKey(t, modulePriv)
	ch := New(reg, outbox, modulePriv, modulePub, logger.Nop())

	err := ch.PublishCardData(context.Background(), holderPub)
	require.NoError(t, err)
	require.Len(t, outbox.published, 1)
	assert.Equal(t, nostr.KindParameterizedReplace, outbox.published[0].Kind)
	assert.NotEmpty(t, outbox.published[0].Sig)
}

func TestHandle_RejectsNonConfigChangeEvent(t *testing.T) {
	ch := New(&fakeRegistry{}, &fakeOutbox{}, randPrivHex(t, 0x04), "module-pub", logger.Nop())

	err := ch.Handle(context.Background(), &nostr.Event{Kind: nostr.KindRegular, Tags: []nostr.Tag{{"t", "something-else"}}})
	assert.ErrorIs(t, err, ErrUnsupportedEvent)
}

func TestHandle_AppliesConfigAndRepublishes(t *testing.T) {
	holderPriv := randPrivHex(t, 0x05)
	holderPub := mustPubKey(t, holderPriv)
	modulePriv := randPrivHex(t, 0x06)
	modulePub := mustPubKey(t, modulePriv)

	cfg := models.CardConfigDocument{Cards: map[string]models.CardConfig{}}
	plaintext := `{"trusted-merchants":[],"cards":{}}`
	ciphertext, err := nostr.Encrypt(holderPriv, modulePub, []byte(plaintext))
	require.NoError(t, err)

	reg := &fakeRegistry{cards: map[string][]models.Card{}}
	outbox := &fakeOutbox{}
	ch := New(reg, outbox, modulePriv, modulePub, logger.Nop())

	const fixedNow = int64(1700000000)
	ch.now = func() int64 { return fixedNow }

	event := &nostr.Event{
		PubKey:    holderPub,
		Kind:      nostr.KindRegular,
		CreatedAt: fixedNow,
		Tags:      []nostr.Tag{{"t", "card-config-change"}, {"p", modulePub}},
		Content:   ciphertext,
	}
	require.NoError(t, event.Sign(holderPriv))

	err = ch.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, holderPub, reg.appliedFor)
	_ = cfg

	require.Len(t, outbox.published, 1)
	published := outbox.published[0]
	eTag := published.FindTag("e")
	require.NotNil(t, eTag)
	assert.Equal(t, event.ID, eTag[1])
}

func TestHandle_RejectsUnsignedEvent(t *testing.T) {
	reg := &fakeRegistry{cards: map[string][]models.Card{}}
	ch := New(reg, &fakeOutbox{}, randPrivHex(t, 0x08), "module-pub", logger.Nop())

	event := &nostr.Event{
		Kind:    nostr.KindRegular,
		Tags:    []nostr.Tag{{"t", "card-config-change"}},
		Content: "irrelevant",
	}

	err := ch.Handle(context.Background(), event)
	require.Error(t, err)
	assert.Empty(t, reg.appliedFor)
}

func mustPubKey(t *testing.T, privHex string) string {
	t.Helper()
	priv, err := nostr.ParsePrivateKey(privHex)
	require.NoError(t, err)
	e := &nostr.Event{}
	require.NoError(t, e.Sign(privHex))
	_ = priv
	return e.PubKey
}
