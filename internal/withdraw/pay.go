package withdraw

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/nostr"
	"github.com/lawallet/card-server/models"
)

// clock adapts d.now to [nostr.Clock].
func (d *Dispatcher) clock() nostr.Clock {
	return func() int64 { return d.now().Unix() }
}

// StandardPay handles the GET /card/pay?k1&pr LNURL-withdraw callback:
// decode the bolt11 invoice, consume k1 under every limit/balance/
// delegation check, and emit the ledger-facing internal-transaction-start
// event.
func (d *Dispatcher) StandardPay(ctx context.Context, k1, pr string) (models.StandardPayResponse, error) {
	invoice, err := decodeInvoice(pr)
	if err != nil {
		return models.StandardPayResponse{}, err
	}
	if d.now().After(invoice.Expiry) {
		return models.StandardPayResponse{}, ErrInvoiceExpired
	}

	var delegation models.Delegation

	_, payments, err := d.registry.ConsumePaymentRequestAndPay(ctx, k1, d.cfg.PaymentRequestExpirySeconds, d.now(),
		func(ctx context.Context, req models.PaymentRequest) ([]models.Payment, error) {
			var resp models.ScanResponse
			if err := json.Unmarshal(req.Response, &resp); err != nil {
				return nil, fmt.Errorf("unmarshaling scan response: %w", err)
			}
			if resp.Tag != "withdrawRequest" {
				return nil, ErrWrongPaymentRequestTag
			}
			if invoice.MilliSat > resp.MaxWithdrawable {
				return nil, ErrAmountExceedsMax
			}

			card, err := d.registry.CardByUUID(ctx, req.CardUUID)
			if err != nil {
				return nil, err
			}
			if card.HolderPubKey == nil {
				return nil, ErrCardUnbound
			}

			remaining, err := d.limits.Remaining(ctx, card, []string{"BTC"})
			if err != nil {
				return nil, err
			}
			if invoice.MilliSat > remaining["BTC"] {
				return nil, ErrAmountExceedsRemaining
			}

			balance, err := d.balances.Balance(ctx, *card.HolderPubKey, "BTC")
			if err != nil {
				return nil, err
			}
			if invoice.MilliSat > balance {
				return nil, ErrAmountExceedsBalance
			}

			delegation, err = d.registry.LatestHolderDelegation(ctx, *card.HolderPubKey)
			if err != nil {
				return nil, ErrNoDelegation
			}

			return []models.Payment{{Token: "BTC", Amount: invoice.MilliSat, Status: models.PaymentStatusConfirmed}}, nil
		})
	if err != nil {
		return models.StandardPayResponse{}, err
	}

	tokens := map[string]int64{"BTC": payments[0].Amount}
	d.emitTransactionStart(ctx, tokens, delegation, d.cfg.BTCGatewayPubkey, []nostr.Tag{{"bolt11", pr}})

	return models.StandardPayResponse{Status: "OK"}, nil
}

// ExtendedPay handles the POST /card/pay multi-token withdraw: body is
// a signed event whose content is [models.ExtendedPayRequest].
func (d *Dispatcher) ExtendedPay(ctx context.Context, event *nostr.Event) (models.StandardPayResponse, error) {
	if _, err := nostr.Preflight(event, d.clock(), ""); err != nil {
		return models.StandardPayResponse{}, err
	}

	var req models.ExtendedPayRequest
	if err := json.Unmarshal([]byte(event.Content), &req); err != nil {
		return models.StandardPayResponse{}, fmt.Errorf("unmarshaling extended pay request: %w", err)
	}

	recipientHex, err := nostr.DecodePubkey(req.PubKey)
	if err != nil {
		return models.StandardPayResponse{}, ErrInvalidPubkey
	}

	var delegation models.Delegation

	_, payments, err := d.registry.ConsumePaymentRequestAndPay(ctx, req.K1, d.cfg.PaymentRequestExpirySeconds, d.now(),
		func(ctx context.Context, pr models.PaymentRequest) ([]models.Payment, error) {
			var resp models.ExtendedScanResponse
			if err := json.Unmarshal(pr.Response, &resp); err != nil {
				return nil, fmt.Errorf("unmarshaling extended scan response: %w", err)
			}
			if resp.Tag != "laWallet:withdrawRequest" {
				return nil, ErrWrongPaymentRequestTag
			}

			card, err := d.registry.CardByUUID(ctx, pr.CardUUID)
			if err != nil {
				return nil, err
			}
			if card.HolderPubKey == nil {
				return nil, ErrCardUnbound
			}

			tokenNames := make([]string, 0, len(req.Tokens))
			for t := range req.Tokens {
				tokenNames = append(tokenNames, t)
			}
			remaining, err := d.limits.Remaining(ctx, card, tokenNames)
			if err != nil {
				return nil, err
			}

			payments := make([]models.Payment, 0, len(req.Tokens))
			for token, amount := range req.Tokens {
				withdrawable, ok := resp.Tokens[token]
				if !ok {
					return nil, ErrUnknownToken
				}
				if amount > withdrawable.MaxWithdrawable {
					return nil, ErrAmountExceedsMax
				}
				if amount > remaining[token] {
					return nil, ErrAmountExceedsRemaining
				}

				balance, err := d.balances.Balance(ctx, *card.HolderPubKey, token)
				if err != nil {
					return nil, err
				}
				if amount > balance {
					return nil, ErrAmountExceedsBalance
				}

				payments = append(payments, models.Payment{Token: token, Amount: amount, Status: models.PaymentStatusConfirmed})
			}

			delegation, err = d.registry.LatestHolderDelegation(ctx, *card.HolderPubKey)
			if err != nil {
				return nil, ErrNoDelegation
			}

			return payments, nil
		})
	if err != nil {
		return models.StandardPayResponse{}, err
	}

	tokens := make(map[string]int64, len(payments))
	for _, p := range payments {
		tokens[p.Token] = p.Amount
	}
	d.emitTransactionStart(ctx, tokens, delegation, recipientHex, nil)

	return models.StandardPayResponse{Status: "OK"}, nil
}

// emitTransactionStart signs and publishes the kind-1112
// internal-transaction-start event. Publish failure is logged, not
// returned: the Payment rows already committed stay in place, and the
// event is not published again.
func (d *Dispatcher) emitTransactionStart(ctx context.Context, tokens map[string]int64, delegation models.Delegation, secondP string, extraTags []nostr.Tag) {
	log := logger.FromContext(ctx)

	content, err := json.Marshal(map[string]any{"tokens": tokens})
	if err != nil {
		log.Err(err).Str("func", "Dispatcher.emitTransactionStart").Msg("failed to marshal payload")
		return
	}

	tags := []nostr.Tag{
		{"p", d.cfg.LedgerPubkey},
		{"p", secondP},
		{"t", "internal-transaction-start"},
		{"delegation", delegation.DelegatorPubKey, delegation.Conditions, delegation.DelegationToken},
	}
	tags = append(tags, extraTags...)

	event := &nostr.Event{
		CreatedAt: d.now().Unix(),
		Kind:      nostr.KindRegular,
		Tags:      tags,
		Content:   string(content),
	}
	if err := event.Sign(d.cfg.ModulePrivKeyHex); err != nil {
		log.Err(err).Str("func", "Dispatcher.emitTransactionStart").Msg("failed to sign event")
		return
	}

	if err := d.outbox.Publish(ctx, event); err != nil {
		log.Err(err).Str("func", "Dispatcher.emitTransactionStart").Msg("failed to publish event; payment rows stand as durable intent")
	}
}
