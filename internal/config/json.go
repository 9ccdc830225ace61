package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors StructuredConfig for JSON-file overlay
// configuration, using the Duration wrapper so values may be given either as
// a human string ("30s") or as a raw nanosecond count.
type StructuredJSONConfig struct {
	Server struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
		AESKeyHex      string   `json:"aes_key_hex"`
	} `json:"server,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Nostr struct {
		PrivateKey string `json:"private_key"`
		PublicKey  string `json:"public_key"`
	} `json:"nostr,omitempty"`

	Federation struct {
		ID         string `json:"federation_id"`
		APIBaseURL string `json:"api_base_url"`
	} `json:"federation,omitempty"`

	App struct {
		CardWriterPubkey            string `json:"card_writer_pubkey"`
		AdminPubkeys                string `json:"admin_pubkeys"`
		IdentityProviderAPIBase     string `json:"identity_provider_api_base"`
		LedgerPublicKey             string `json:"ledger_public_key"`
		BTCGatewayPublicKey         string `json:"btc_gateway_public_key"`
		DefaultLimits               string `json:"default_limits"`
		DefaultTrustedMerchants     string `json:"default_trusted_merchants"`
		PaymentRequestExpirySeconds int    `json:"payment_request_expiry_in_seconds"`
	} `json:"app,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Server: Server{
			HTTPAddress:    jsonCfg.Server.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Server.RequestTimeout),
			AESKeyHex:      jsonCfg.Server.AESKeyHex,
		},
		Storage: Storage{
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
		},
		Nostr: Nostr{
			PrivateKey: jsonCfg.Nostr.PrivateKey,
			PublicKey:  jsonCfg.Nostr.PublicKey,
		},
		Federation: Federation{
			ID:         jsonCfg.Federation.ID,
			APIBaseURL: jsonCfg.Federation.APIBaseURL,
		},
		App: App{
			CardWriterPubkey:            jsonCfg.App.CardWriterPubkey,
			AdminPubkeys:                jsonCfg.App.AdminPubkeys,
			IdentityProviderAPIBase:     jsonCfg.App.IdentityProviderAPIBase,
			LedgerPublicKey:             jsonCfg.App.LedgerPublicKey,
			BTCGatewayPublicKey:         jsonCfg.App.BTCGatewayPublicKey,
			DefaultLimits:               jsonCfg.App.DefaultLimits,
			DefaultTrustedMerchants:     jsonCfg.App.DefaultTrustedMerchants,
			PaymentRequestExpirySeconds: jsonCfg.App.PaymentRequestExpirySeconds,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s" as well as raw nanosecond numbers.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
