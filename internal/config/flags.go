package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a server address in format [host]:[port]
//	-d database DSN
//	-c/-config json file path with configs
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-aes-key-hex module-wide NTAG 424 AES key (16-byte hex)
//	-nostr-private-key module signing key
//	-nostr-public-key module public key
//	-card-writer-pubkey card-programming authority pubkey
//	-admin-pubkeys ':'-separated admin pubkeys
//	-federation-id federation identifier
//	-federation-api-base-url federation API base URL
func ParseFlags() *StructuredConfig {
	var serverAddress NetAddress
	var databaseDSN string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var aesKeyHex string
	var nostrPrivateKey string
	var nostrPublicKey string
	var cardWriterPubkey string
	var adminPubkeys string
	var federationID string
	var federationAPIBaseURL string

	flag.Var(&serverAddress, "a", "Net address host:port")
	flag.StringVar(&databaseDSN, "d", "", "Database DSN")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	flag.StringVar(&aesKeyHex, "aes-key-hex", "", "module-wide NTAG 424 AES key, 16-byte hex")
	flag.StringVar(&nostrPrivateKey, "nostr-private-key", "", "module signing private key")
	flag.StringVar(&nostrPublicKey, "nostr-public-key", "", "module public key")
	flag.StringVar(&cardWriterPubkey, "card-writer-pubkey", "", "card-programming authority pubkey")
	flag.StringVar(&adminPubkeys, "admin-pubkeys", "", "':'-separated admin pubkeys")
	flag.StringVar(&federationID, "federation-id", "", "federation identifier")
	flag.StringVar(&federationAPIBaseURL, "federation-api-base-url", "", "federation API base URL")

	flag.Parse()

	return &StructuredConfig{
		Server: Server{
			HTTPAddress:    serverAddress.String(),
			RequestTimeout: requestTimeout,
			AESKeyHex:      aesKeyHex,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Nostr: Nostr{
			PrivateKey: nostrPrivateKey,
			PublicKey:  nostrPublicKey,
		},
		Federation: Federation{
			ID:         federationID,
			APIBaseURL: federationAPIBaseURL,
		},
		App: App{
			CardWriterPubkey: cardWriterPubkey,
			AdminPubkeys:     adminPubkeys,
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns a canonical host:port string for a NetAddress.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
