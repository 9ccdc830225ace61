package lifecycle

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/nostr"
	"github.com/lawallet/card-server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	ntag models.NTAG
	err  error
}

func (f *fakeVerifier) Verify(ctx context.Context, p, c string) (models.NTAG, error) {
	return f.ntag, f.err
}

type fakeRegistry struct {
	ntagsByCid    map[string]models.NTAG
	ntagsByOTC    map[string]models.NTAG
	designs       map[string]models.Design
	cardsByCid    map[string]models.Card
	resetTokens   map[string]models.ResetToken
	holders       map[string]models.Delegation
	transferredTo map[string]string

	createNTAGErr error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		ntagsByCid:    map[string]models.NTAG{},
		ntagsByOTC:    map[string]models.NTAG{},
		designs:       map[string]models.Design{},
		cardsByCid:    map[string]models.Card{},
		resetTokens:   map[string]models.ResetToken{},
		holders:       map[string]models.Delegation{},
		transferredTo: map[string]string{},
	}
}

func (f *fakeRegistry) CreateNTAG(ctx context.Context, cid string, ctr int64, moduleK1Hex string, design models.DesignRef) (models.NTAG, error) {
	if f.createNTAGErr != nil {
		return models.NTAG{}, f.createNTAGErr
	}
	n := models.NTAG{Cid: cid, Ctr: ctr, K1: moduleK1Hex, DesignUUID: design.UUID}
	f.ntagsByCid[cid] = n
	return n, nil
}

func (f *fakeRegistry) NTAGByCid(ctx context.Context, cid string) (models.NTAG, error) {
	return f.ntagsByCid[cid], nil
}

func (f *fakeRegistry) SetOTC(ctx context.Context, cid, otc string) error {
	n := f.ntagsByCid[cid]
	n.OTC = &otc
	f.ntagsByCid[cid] = n
	f.ntagsByOTC[otc] = n
	return nil
}

func (f *fakeRegistry) FindAvailableNTAGByOTC(ctx context.Context, otc string) (models.NTAG, error) {
	n, ok := f.ntagsByOTC[otc]
	if !ok {
		return models.NTAG{}, assert.AnError
	}
	return n, nil
}

func (f *fakeRegistry) DesignByUUID(ctx context.Context, uuid string) (models.Design, error) {
	return f.designs[uuid], nil
}

func (f *fakeRegistry) UpsertHolder(ctx context.Context, pubKey string, delegation models.Delegation, defaultMerchants []string) error {
	f.holders[pubKey] = delegation
	return nil
}

func (f *fakeRegistry) CreateCard(ctx context.Context, ntagCid, holderPubKey, designName, designDescription string, defaultLimits []models.Limit) (models.Card, error) {
	holder := holderPubKey
	card := models.Card{UUID: "card-" + ntagCid, Name: designName, Description: designDescription, Enabled: true, NTAG424Cid: ntagCid, HolderPubKey: &holder, Limits: defaultLimits}
	f.cardsByCid[ntagCid] = card
	return card, nil
}

func (f *fakeRegistry) CardByNTAGCid(ctx context.Context, cid string) (models.Card, error) {
	return f.cardsByCid[cid], nil
}

func (f *fakeRegistry) TransferCard(ctx context.Context, uuid, fromPubKey, toPubKey string) error {
	f.transferredTo[uuid] = toPubKey
	return nil
}

func (f *fakeRegistry) UpsertResetToken(ctx context.Context, rt models.ResetToken) error {
	f.resetTokens[rt.Token] = rt
	return nil
}

func (f *fakeRegistry) ResetTokenByToken(ctx context.Context, token string) (models.ResetToken, error) {
	rt, ok := f.resetTokens[token]
	if !ok {
		return models.ResetToken{}, assert.AnError
	}
	return rt, nil
}

func (f *fakeRegistry) ClaimResetToken(ctx context.Context, token string, oldHolderPubKey, newHolderPubKey string, newDelegation models.Delegation) error {
	delete(f.resetTokens, token)
	f.holders[newHolderPubKey] = newDelegation
	for cid, card := range f.cardsByCid {
		if card.HolderPubKey != nil && *card.HolderPubKey == oldHolderPubKey {
			nh := newHolderPubKey
			card.HolderPubKey = &nh
			f.cardsByCid[cid] = card
		}
	}
	return nil
}

type fakeChannel struct {
	publishedData   []string
	publishedConfig []string
}

func (f *fakeChannel) PublishCardData(ctx context.Context, holderPubKey string) error {
	f.publishedData = append(f.publishedData, holderPubKey)
	return nil
}

func (f *fakeChannel) PublishCardConfig(ctx context.Context, holderPubKey, eTag string) error {
	f.publishedConfig = append(f.publishedConfig, holderPubKey)
	return nil
}

type fakeIdentityProvider struct {
	name string
	err  error
}

func (f *fakeIdentityProvider) TransferIdentity(ctx context.Context, oldPubKey, newPubKey string) (string, error) {
	return f.name, f.err
}

type fakeOutbox struct {
	published []*nostr.Event
}

func (f *fakeOutbox) Publish(ctx context.Context, event *nostr.Event) error {
	f.published = append(f.published, event)
	return nil
}

func randPrivHex(seed byte) string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed
	}
	return hex.EncodeToString(raw)
}

func pubKeyOf(t *testing.T, privHex string) string {
	t.Helper()
	e := &nostr.Event{}
	require.NoError(t, e.Sign(privHex))
	return e.PubKey
}

func newOrchestrator(verifier Verifier, registry Registry, channel ConfigChannel, idp IdentityProvider, outbox Outbox, cfg Config) *Orchestrator {
	o := New(verifier, registry, channel, idp, outbox, cfg, logger.Nop())
	o.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return o
}

func signedEvent(t *testing.T, privHex string, kind int, tags []nostr.Tag, content string, createdAt int64) *nostr.Event {
	t.Helper()
	e := &nostr.Event{CreatedAt: createdAt, Kind: kind, Tags: tags, Content: content}
	require.NoError(t, e.Sign(privHex))
	return e
}

func TestInitialize_RejectsNonWriter(t *testing.T) {
	writerPriv := randPrivHex(0x01)
	writerPub := pubKeyOf(t, writerPriv)
	otherPriv := randPrivHex(0x02)

	cfg := Config{ModulePrivKeyHex: randPrivHex(0x10), CardWriterPubkey: writerPub}
	o := newOrchestrator(&fakeVerifier{}, newFakeRegistry(), &fakeChannel{}, nil, &fakeOutbox{}, cfg)

	event := signedEvent(t, otherPriv, nostr.KindRegular, nil, `{"cid":"cid1","ctr":0,"design":{"name":"classic"}}`, 1_700_000_000)

	_, err := o.Initialize(context.Background(), event)
	assert.ErrorIs(t, err, nostr.ErrUnexpectedPubkey)
}

func TestInitialize_RequiresDesign(t *testing.T) {
	writerPriv := randPrivHex(0x01)
	writerPub := pubKeyOf(t, writerPriv)

	cfg := Config{ModulePrivKeyHex: randPrivHex(0x10), CardWriterPubkey: writerPub}
	o := newOrchestrator(&fakeVerifier{}, newFakeRegistry(), &fakeChannel{}, nil, &fakeOutbox{}, cfg)

	event := signedEvent(t, writerPriv, nostr.KindRegular, nil, `{"cid":"cid1","ctr":0,"design":{}}`, 1_700_000_000)

	_, err := o.Initialize(context.Background(), event)
	assert.ErrorIs(t, err, ErrMissingDesign)
}

func TestInitialize_Success(t *testing.T) {
	writerPriv := randPrivHex(0x01)
	writerPub := pubKeyOf(t, writerPriv)

	reg := newFakeRegistry()
	cfg := Config{ModulePrivKeyHex: randPrivHex(0x10), ModuleK1Hex: "aa", CardWriterPubkey: writerPub}
	o := newOrchestrator(&fakeVerifier{}, reg, &fakeChannel{}, nil, &fakeOutbox{}, cfg)

	event := signedEvent(t, writerPriv, nostr.KindRegular, nil, `{"cid":"cid1","ctr":0,"design":{"uuid":"design1"}}`, 1_700_000_000)

	ntag, err := o.Initialize(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "cid1", ntag.Cid)
	assert.Equal(t, "aa", ntag.K1)
}

func TestActivate_Success(t *testing.T) {
	delegatorPriv := randPrivHex(0x20)
	delegatorPub := pubKeyOf(t, delegatorPriv)
	delegateePriv := randPrivHex(0x21)
	delegateePub := pubKeyOf(t, delegateePriv)

	conditions := "kind=1112&created_at>1600000000&created_at<1800000000"
	token, err := nostr.SignDelegation(delegatorPriv, delegateePub, conditions)
	require.NoError(t, err)

	reg := newFakeRegistry()
	reg.ntagsByOTC["weirdcode"] = models.NTAG{Cid: "cid1", DesignUUID: "design1"}
	reg.designs["design1"] = models.Design{UUID: "design1", Name: "Classic", Description: "d"}

	channel := &fakeChannel{}
	cfg := Config{ModulePrivKeyHex: randPrivHex(0x10)}
	o := newOrchestrator(&fakeVerifier{}, reg, channel, nil, &fakeOutbox{}, cfg)

	content := `{"otc":"weirdcode","delegation":{"delegatorPubKey":"` + delegatorPub + `","conditions":"` + conditions + `","token":"` + token + `"}}`
	event := signedEvent(t, delegateePriv, nostr.KindRegular, nil, content, 1_700_000_000)

	resp, err := o.Activate(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "card-activation-response", resp.FindTag("t")[1])
	assert.Contains(t, channel.publishedData, delegatorPub)
	assert.Contains(t, channel.publishedConfig, delegatorPub)
	assert.Equal(t, delegatorPub, *reg.cardsByCid["cid1"].HolderPubKey)
}

func TestAdminResetRequest_RejectsNonAdmin(t *testing.T) {
	signerPriv := randPrivHex(0x30)

	cfg := Config{ModulePrivKeyHex: randPrivHex(0x10), AdminPubkeys: []string{pubKeyOf(t, randPrivHex(0x99))}}
	o := newOrchestrator(&fakeVerifier{}, newFakeRegistry(), &fakeChannel{}, nil, &fakeOutbox{}, cfg)

	event := signedEvent(t, signerPriv, nostr.KindRegular, nil, `{}`, 1_700_000_000)

	_, err := o.AdminResetRequest(context.Background(), event)
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestAdminResetRequestAndClaim(t *testing.T) {
	adminPriv := randPrivHex(0x31)
	adminPub := pubKeyOf(t, adminPriv)
	targetHolderPriv := randPrivHex(0x32)
	targetHolderPub := pubKeyOf(t, targetHolderPriv)
	newHolderDelegatorPriv := randPrivHex(0x33)
	newHolderDelegatorPub := pubKeyOf(t, newHolderDelegatorPriv)
	newHolderDelegateePriv := randPrivHex(0x34)
	newHolderDelegateePub := pubKeyOf(t, newHolderDelegateePriv)

	reg := newFakeRegistry()
	reg.cardsByCid["admin-cid"] = models.Card{UUID: "admin-card", NTAG424Cid: "admin-cid", HolderPubKey: &adminPub}
	reg.cardsByCid["target-cid"] = models.Card{UUID: "target-card", NTAG424Cid: "target-cid", HolderPubKey: &targetHolderPub}

	verifier := &multiVerifier{byPC: map[string]models.NTAG{
		"ap|ac": {Cid: "admin-cid"},
		"tp|tc": {Cid: "target-cid"},
	}}

	channel := &fakeChannel{}
	idp := &fakeIdentityProvider{name: "acme-identity"}
	outbox := &fakeOutbox{}
	cfg := Config{ModulePrivKeyHex: randPrivHex(0x10), AdminPubkeys: []string{adminPub}, ResetTokenTTL: 180 * time.Second, LedgerPublicKey: "ledger-pub"}
	o := newOrchestrator(verifier, reg, channel, idp, outbox, cfg)

	reqEvent := signedEvent(t, adminPriv, nostr.KindRegular, nil, `{"adminP":"ap","adminC":"ac","targetP":"tp","targetC":"tc"}`, 1_700_000_000)
	resp, err := o.AdminResetRequest(context.Background(), reqEvent)
	require.NoError(t, err)

	var nonceResp models.AdminResetRequestResponse
	require.NoError(t, decodeContent(resp.Content, &nonceResp))
	require.NotEmpty(t, nonceResp.Nonce)

	conditions := "created_at>1600000000&created_at<1800000000"
	token, err := nostr.SignDelegation(newHolderDelegatorPriv, newHolderDelegateePub, conditions)
	require.NoError(t, err)

	claimContent := `{"otc":"` + nonceResp.Nonce + `","delegation":{"delegatorPubKey":"` + newHolderDelegatorPub + `","conditions":"` + conditions + `","token":"` + token + `"}}`
	claimEvent := signedEvent(t, newHolderDelegateePriv, nostr.KindRegular, nil, claimContent, 1_700_000_000)

	claimResp, err := o.AdminResetClaim(context.Background(), claimEvent)
	require.NoError(t, err)

	var claimed models.AdminResetClaimResponse
	require.NoError(t, decodeContent(claimResp.Content, &claimed))
	assert.True(t, claimed.FundsTransferred)
	assert.True(t, claimed.IdentityTransferred)
	assert.True(t, claimed.IdentityProviderUpdated)
	assert.Equal(t, "acme-identity", claimed.IdentityProviderName)

	assert.Equal(t, newHolderDelegatorPub, *reg.cardsByCid["target-cid"].HolderPubKey)
	assert.Len(t, outbox.published, 2)
}

type multiVerifier struct {
	byPC map[string]models.NTAG
}

func (m *multiVerifier) Verify(ctx context.Context, p, c string) (models.NTAG, error) {
	n, ok := m.byPC[p+"|"+c]
	if !ok {
		return models.NTAG{}, assert.AnError
	}
	return n, nil
}

func decodeContent(content string, v any) error {
	return json.Unmarshal([]byte(content), v)
}
