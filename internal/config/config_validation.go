// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "encoding/hex"

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
func (cfg *StructuredConfig) validate() error {
	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	raw, err := hex.DecodeString(cfg.Server.AESKeyHex)
	if err != nil || len(raw) != 16 {
		return ErrInvalidAESKey
	}

	if cfg.Nostr.PrivateKey == "" || cfg.Nostr.PublicKey == "" {
		return ErrInvalidNostrConfigs
	}

	if cfg.App.CardWriterPubkey == "" {
		return ErrInvalidAppConfigs
	}

	if cfg.App.PaymentRequestExpirySeconds <= 0 {
		return ErrInvalidAppConfigs
	}

	if cfg.App.ResetTokenExpirySeconds <= 0 {
		return ErrInvalidAppConfigs
	}

	return nil
}
