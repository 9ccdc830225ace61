package nostr

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// sharedSecret derives the NIP-04 ECDH shared secret: the raw 32-byte X
// coordinate of privKey * pubKey, used directly (no further hashing) as the
// AES-256-CBC key. Grounded on the same ECDH construction
// schjonhaug-tapcards/utils.go's generateSharedSecret uses for its own
// session-key derivation, minus the Y-parity bookkeeping that construction
// needs and NIP-04 does not.
func sharedSecret(privHex, pubHex string) ([]byte, error) {
	priv, err := ParsePrivateKey(privHex)
	if err != nil {
		return nil, err
	}
	pub, err := ParsePublicKey(pubHex)
	if err != nil {
		return nil, err
	}

	var point, result secp256k1.JacobianPoint
	pub.AsJacobian(&point)
	secp256k1.ScalarMultNonConst(&priv.Key, &point, &result)
	result.ToAffine()

	x := result.X.Bytes()
	return x[:], nil
}

// Encrypt produces a single NIP-04 ciphertext: AES-256-CBC with PKCS7
// padding and a random IV, encoded as "base64(ct)?iv=base64(iv)".
func Encrypt(senderPrivHex, recipientPubHex string, plaintext []byte) (string, error) {
	key, err := sharedSecret(senderPrivHex, recipientPubHex)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}

	ct, err := aesCBCEncryptPKCS7(key, iv, plaintext)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(ct) + "?iv=" + base64.StdEncoding.EncodeToString(iv), nil
}

// Decrypt reverses Encrypt: decrypts and PKCS7-unpads a single NIP-04
// ciphertext using recipientPrivHex and senderPubHex.
func Decrypt(recipientPrivHex, senderPubHex, envelope string) ([]byte, error) {
	ctB64, ivB64, ok := splitEnvelope(envelope)
	if !ok {
		return nil, fmt.Errorf("%w: malformed envelope", ErrDecryptionFailed)
	}

	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	key, err := sharedSecret(recipientPrivHex, senderPubHex)
	if err != nil {
		return nil, err
	}

	return aesCBCDecryptPKCS7(key, iv, ct)
}

func splitEnvelope(envelope string) (ct, iv string, ok bool) {
	const sep = "?iv="
	idx := bytes.Index([]byte(envelope), []byte(sep))
	if idx < 0 {
		return "", "", false
	}
	return envelope[:idx], envelope[idx+len(sep):], true
}

func aesCBCEncryptPKCS7(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating aes cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func aesCBCDecryptPKCS7(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not block-aligned", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating aes cipher: %w", err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)

	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryptionFailed)
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
	}
	return data[:len(data)-padLen], nil
}

// Envelope is the canonical multi-recipient encrypted document shape used
// by card-data, card-config, and card-config-change payloads.
type Envelope struct {
	EncAlgo    string   `json:"enc-algo"`
	Ciphertext []string `json:"ciphertext"`
	Recipients []string `json:"recipients"`
}

// EncryptMany builds the canonical multi-recipient envelope: one NIP-04
// ciphertext per recipient, all encrypted from the same sender key and
// plaintext.
func EncryptMany(senderPrivHex string, plaintext []byte, recipients []string) (*Envelope, error) {
	env := &Envelope{
		EncAlgo:    "nip-04",
		Ciphertext: make([]string, 0, len(recipients)),
		Recipients: append([]string(nil), recipients...),
	}

	for _, recipient := range recipients {
		ct, err := Encrypt(senderPrivHex, recipient, plaintext)
		if err != nil {
			return nil, fmt.Errorf("encrypting for recipient %s: %w", recipient, err)
		}
		env.Ciphertext = append(env.Ciphertext, ct)
	}

	return env, nil
}

// MarshalJSON serializes the envelope to its canonical wire form, suitable
// for use as an event's content field.
func (env *Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	return json.Marshal((*alias)(env))
}

// DecryptAsRecipient decrypts the ciphertext addressed to recipientPubHex
// out of a multi-recipient envelope, using recipientPrivHex and the known
// sender pubkey.
func (env *Envelope) DecryptAsRecipient(recipientPrivHex, recipientPubHex, senderPubHex string) ([]byte, error) {
	for i, r := range env.Recipients {
		if r == recipientPubHex {
			if i >= len(env.Ciphertext) {
				return nil, fmt.Errorf("%w: ciphertext/recipient length mismatch", ErrDecryptionFailed)
			}
			return Decrypt(recipientPrivHex, senderPubHex, env.Ciphertext[i])
		}
	}
	return nil, ErrRecipientNotFound
}

// ParseEnvelope parses the canonical multi-recipient JSON document.
func ParseEnvelope(content string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return &env, nil
}
