package nostr

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genKeypair(t *testing.T) (privHex, pubHex string) {
	t.Helper()

	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)

	priv, err := ParsePrivateKey(hex.EncodeToString(raw))
	require.NoError(t, err)

	return hex.EncodeToString(raw), hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
}

func TestSharedSecret_IsSymmetric(t *testing.T) {
	alicePriv, alicePub := genKeypair(t)
	bobPriv, bobPub := genKeypair(t)

	fromAlice, err := sharedSecret(alicePriv, bobPub)
	require.NoError(t, err)

	fromBob, err := sharedSecret(bobPriv, alicePub)
	require.NoError(t, err)

	assert.Equal(t, fromAlice, fromBob)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	alicePriv, alicePub := genKeypair(t)
	bobPriv, bobPub := genKeypair(t)

	plaintext := []byte(`{"hello":"world"}`)

	envelope, err := Encrypt(alicePriv, bobPub, plaintext)
	require.NoError(t, err)
	assert.Contains(t, envelope, "?iv=")

	decrypted, err := Decrypt(bobPriv, alicePub, envelope)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecrypt_MalformedEnvelope(t *testing.T) {
	bobPriv, _ := genKeypair(t)
	_, alicePub := genKeypair(t)

	_, err := Decrypt(bobPriv, alicePub, "not-a-valid-envelope")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptMany_DecryptAsRecipient(t *testing.T) {
	senderPriv, _ := genKeypair(t)
	bobPriv, bobPub := genKeypair(t)
	carolPriv, carolPub := genKeypair(t)

	plaintext := []byte("shared config document")

	env, err := EncryptMany(senderPriv, plaintext, []string{bobPub, carolPub})
	require.NoError(t, err)
	assert.Equal(t, "nip-04", env.EncAlgo)
	assert.Len(t, env.Ciphertext, 2)

	_, senderPub := genKeypairFromPriv(t, senderPriv)

	bobPlain, err := env.DecryptAsRecipient(bobPriv, bobPub, senderPub)
	require.NoError(t, err)
	assert.Equal(t, plaintext, bobPlain)

	carolPlain, err := env.DecryptAsRecipient(carolPriv, carolPub, senderPub)
	require.NoError(t, err)
	assert.Equal(t, plaintext, carolPlain)
}

func TestEncryptMany_UnknownRecipient(t *testing.T) {
	senderPriv, _ := genKeypair(t)
	bobPriv, bobPub := genKeypair(t)
	_, strangerPub := genKeypair(t)

	env, err := EncryptMany(senderPriv, []byte("x"), []string{bobPub})
	require.NoError(t, err)

	_, senderPub := genKeypairFromPriv(t, senderPriv)

	_, err = env.DecryptAsRecipient(bobPriv, strangerPub, senderPub)
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestParseEnvelope_RoundTrip(t *testing.T) {
	senderPriv, _ := genKeypair(t)
	_, bobPub := genKeypair(t)

	env, err := EncryptMany(senderPriv, []byte("x"), []string{bobPub})
	require.NoError(t, err)

	raw, err := env.MarshalJSON()
	require.NoError(t, err)

	parsed, err := ParseEnvelope(string(raw))
	require.NoError(t, err)
	assert.Equal(t, env.Recipients, parsed.Recipients)
	assert.Equal(t, env.Ciphertext, parsed.Ciphertext)
}

func genKeypairFromPriv(t *testing.T, privHex string) (priv, pub string) {
	t.Helper()
	p, err := ParsePrivateKey(privHex)
	require.NoError(t, err)
	return privHex, hex.EncodeToString(schnorr.SerializePubKey(p.PubKey()))
}
