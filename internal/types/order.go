package types

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedEvent is returned when a fill_order message or its amounts cannot be decoded.
var ErrMalformedEvent = errors.New("malformed event")

// OrderFilled is one filled order extracted from an order_filled transaction.
type OrderFilled struct {
	TxHash             string    `json:"tx_hash"`
	Sender             string    `json:"sender"`
	Filler             string    `json:"filler"`
	AmountIn           string    `json:"amount_in"`
	AmountOut          string    `json:"amount_out"`
	SourceDomain       string    `json:"source_domain"`
	SolverRevenue      int64     `json:"solver_revenue"`
	Height             uint64    `json:"height"`
	Code               uint32    `json:"code"`
	IngestionTimestamp time.Time `json:"ingestion_timestamp"`
}

// RawTxResponse is the audit row for a fetched transaction response.
type RawTxResponse struct {
	TxHash     string `json:"tx_hash"`
	Height     uint64 `json:"height"`
	TxResponse []byte `json:"tx_response"`
	Valid      bool   `json:"valid"`
}

// SolverRevenue returns amountIn - amountOut. Both amounts must be integers and the
// difference must fit in an int64.
func SolverRevenue(amountIn, amountOut string) (int64, error) {
	in, err := parseAmount("amount_in", amountIn)
	if err != nil {
		return 0, err
	}
	out, err := parseAmount("amount_out", amountOut)
	if err != nil {
		return 0, err
	}

	rev := in.Sub(out)
	if rev.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || rev.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("solver revenue %s overflows int64", rev.String())
	}
	return rev.IntPart(), nil
}

func parseAmount(field, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q: %v", ErrMalformedEvent, field, v, err)
	}
	if !d.IsInteger() {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not an integer", ErrMalformedEvent, field, v)
	}
	return d, nil
}

// MinMaxHeight returns the lowest and highest height in orders, or zeros for an empty slice.
func MinMaxHeight(orders []OrderFilled) (lowest, highest uint64) {
	for i, o := range orders {
		if i == 0 || o.Height < lowest {
			lowest = o.Height
		}
		if o.Height > highest {
			highest = o.Height
		}
	}
	return lowest, highest
}
