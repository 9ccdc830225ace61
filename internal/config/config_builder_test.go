package config

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func writeTempJSONConfig(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

// ── newConfigBuilder ──────────────────────────────────────────────────────────

func TestNewConfigBuilder_InitialState(t *testing.T) {
	b := newConfigBuilder()
	require.NotNil(t, b)
	assert.NoError(t, b.err)
	assert.Empty(t, b.configs)
}

// ── build ─────────────────────────────────────────────────────────────────────

func TestBuild_PropagatesBuilderError(t *testing.T) {
	b := newConfigBuilder()
	b.err = assert.AnError

	cfg, err := b.build()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBuild_MergesMultipleConfigs(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&StructuredConfig{
			App:     App{CardWriterPubkey: "writer-pub", PaymentRequestExpirySeconds: 300},
			Storage: Storage{DB: DB{DSN: "postgres://localhost/db"}},
			Server:  Server{AESKeyHex: "00112233445566778899aabbccddeeff"},
		},
		&StructuredConfig{
			Federation: Federation{ID: "fed-1"},
			Nostr:      Nostr{PrivateKey: "priv", PublicKey: "pub"},
			App:        App{ResetTokenExpirySeconds: 180},
		},
	)

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, "writer-pub", cfg.App.CardWriterPubkey)
	assert.Equal(t, "fed-1", cfg.Federation.ID)
}

func TestBuild_SingleConfig(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{
		App: App{CardWriterPubkey: "solo-pub"},
	})

	cfg, err := b.build()
	require.NotNil(t, cfg)
	// validate() rejects this incomplete config, but the merge itself must
	// have happened before validation runs.
	require.Error(t, err)
	assert.Equal(t, "solo-pub", cfg.App.CardWriterPubkey)
}

// ── withEnv ───────────────────────────────────────────────────────────────────

func TestWithEnv_ReturnsBuilder(t *testing.T) {
	b := newConfigBuilder()
	assert.Same(t, b, b.withEnv())
}

func TestWithEnv_AppendsOneConfig(t *testing.T) {
	b := newConfigBuilder()
	b.withEnv()
	assert.Len(t, b.configs, 1)
}

func TestWithEnv_ReadsEnvVars(t *testing.T) {
	t.Setenv("CARD_WRITER_PUBKEY", "env-writer-pub")
	t.Setenv("LAWALLET_FEDERATION_ID", "env-fed")

	b := newConfigBuilder()
	b.withEnv()

	require.Len(t, b.configs, 1)
	assert.Equal(t, "env-writer-pub", b.configs[0].App.CardWriterPubkey)
	assert.Equal(t, "env-fed", b.configs[0].Federation.ID)
}

func TestWithEnv_NoErrorOnEmptyEnv(t *testing.T) {
	b := newConfigBuilder()
	b.withEnv()
	assert.NoError(t, b.err)
}

// ── withFlags ─────────────────────────────────────────────────────────────────

func TestWithFlags_ReturnsBuilder(t *testing.T) {
	b := newConfigBuilder()
	assert.Same(t, b, b.withFlags())
}

// ── withJSON ──────────────────────────────────────────────────────────────────

func TestWithJSON_ReturnsBuilder(t *testing.T) {
	b := newConfigBuilder()
	assert.Same(t, b, b.withJSON())
}

func TestWithJSON_NoOp_WhenNoPathSet(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{})
	b.withJSON()

	assert.Len(t, b.configs, 1)
	assert.NoError(t, b.err)
}

func TestWithJSON_AppendsConfig_WhenValidFile(t *testing.T) {
	payload := StructuredJSONConfig{}
	payload.App.CardWriterPubkey = "json-writer-pub"
	payload.Federation.ID = "json-fed"
	path := writeTempJSONConfig(t, payload)

	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{JSONFilePath: path})
	b.withJSON()

	require.NoError(t, b.err)
	require.Len(t, b.configs, 2)
	assert.Equal(t, "json-writer-pub", b.configs[1].App.CardWriterPubkey)
	assert.Equal(t, "json-fed", b.configs[1].Federation.ID)
}

func TestWithJSON_SetsError_WhenFileNotFound(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{
		JSONFilePath: "/nonexistent/config.json",
	})
	b.withJSON()

	assert.Error(t, b.err)
}

func TestWithJSON_SetsError_WhenMalformedJSON(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "bad-*.json")
	require.NoError(t, err)
	_, err = f.WriteString("{not valid json")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{JSONFilePath: f.Name()})
	b.withJSON()

	assert.Error(t, b.err)
}

func TestWithJSON_UsesLastPath(t *testing.T) {
	payload := StructuredJSONConfig{}
	payload.App.CardWriterPubkey = "last-wins"
	path := writeTempJSONConfig(t, payload)

	b := newConfigBuilder()
	b.configs = append(b.configs,
		&StructuredConfig{JSONFilePath: ""},
		&StructuredConfig{JSONFilePath: path},
	)
	b.withJSON()

	require.NoError(t, b.err)
	require.Len(t, b.configs, 3)
	assert.Equal(t, "last-wins", b.configs[2].App.CardWriterPubkey)
}
