package withdraw

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
)

// invoiceNetworks are tried in order since the module's configuration
// pins no bitcoin network; a bolt11 invoice's own human-readable prefix
// picks the one zpay32 actually decodes against.
var invoiceNetworks = []*chaincfg.Params{
	&chaincfg.MainNetParams,
	&chaincfg.TestNet3Params,
	&chaincfg.RegressionNetParams,
}

// decodedInvoice is the subset of a bolt11 invoice the dispatcher needs.
type decodedInvoice struct {
	MilliSat int64
	Expiry   time.Time
}

func decodeInvoice(pr string) (decodedInvoice, error) {
	var lastErr error
	for _, net := range invoiceNetworks {
		invoice, err := zpay32.Decode(pr, net)
		if err != nil {
			lastErr = err
			continue
		}

		if invoice.MilliSat == nil {
			return decodedInvoice{}, ErrInvoiceMissingAmount
		}

		return decodedInvoice{
			MilliSat: int64(*invoice.MilliSat),
			Expiry:   invoice.Timestamp.Add(invoice.Expiry()),
		}, nil
	}

	if lastErr != nil {
		return decodedInvoice{}, ErrInvoiceMalformed
	}
	return decodedInvoice{}, ErrInvoiceMalformed
}
