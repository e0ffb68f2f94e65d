package cosmos

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ava-labs/orderfill-indexer/internal/types"
)

// Mapper turns fetched transactions into order records.
// Messages executed against a contract other than Contract are ignored; an empty
// Contract accepts every contract.
type Mapper struct {
	Contract string
	Now      func() time.Time
}

// NewMapper returns a Mapper bound to the given contract address.
func NewMapper(contract string) *Mapper {
	return &Mapper{Contract: contract, Now: time.Now}
}

// MapTxResponse returns one record per fill_order message in tx, including
// messages wrapped in authz MsgExec. A fill_order missing a required field
// yields an error wrapping types.ErrMalformedEvent.
func (m *Mapper) MapTxResponse(tx types.TxResponse) ([]types.OrderFilled, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	ts := now().UTC()

	var orders []types.OrderFilled
	for i, raw := range tx.Tx.Body.Messages {
		fills, err := m.fillOrders(raw, 0)
		if err != nil {
			return nil, fmt.Errorf("tx %s message %d: %w", tx.TxHash, i, err)
		}
		for _, f := range fills {
			o, err := toOrder(tx, f.sender, f.fill, ts)
			if err != nil {
				return nil, fmt.Errorf("tx %s message %d: %w", tx.TxHash, i, err)
			}
			orders = append(orders, o)
		}
	}
	return orders, nil
}

const maxExecDepth = 4

// matchedFill is a fill_order together with the sender of the message carrying it.
type matchedFill struct {
	sender string
	fill   *fillOrder
}

func (m *Mapper) fillOrders(raw json.RawMessage, depth int) ([]matchedFill, error) {
	var msg txMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: decode message: %v", types.ErrMalformedEvent, err)
	}

	switch msg.Type {
	case typeMsgExec:
		if depth >= maxExecDepth {
			return nil, fmt.Errorf("%w: authz exec nested deeper than %d", types.ErrMalformedEvent, maxExecDepth)
		}
		var out []matchedFill
		for _, inner := range msg.Msgs {
			f, err := m.fillOrders(inner, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, f...)
		}
		return out, nil
	case typeMsgExecuteContract:
		if m.Contract != "" && msg.Contract != m.Contract {
			return nil, nil
		}
		fill, err := decodeFillOrder(msg.Msg)
		if err != nil || fill == nil {
			return nil, err
		}
		return []matchedFill{{sender: msg.Sender, fill: fill}}, nil
	default:
		return nil, nil
	}
}

// decodeFillOrder returns nil when the execute message is not a fill_order.
// A present fill_order that does not decode is malformed.
func decodeFillOrder(raw json.RawMessage) (*fillOrder, error) {
	body, err := contractMsgBody(raw)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	var exec map[string]json.RawMessage
	if err := json.Unmarshal(body, &exec); err != nil {
		return nil, fmt.Errorf("%w: decode execute msg: %v", types.ErrMalformedEvent, err)
	}
	rawFill, ok := exec[fillOrderKey]
	if !ok {
		return nil, nil
	}
	var fill fillOrder
	if err := json.Unmarshal(rawFill, &fill); err != nil {
		return nil, fmt.Errorf("%w: decode fill_order: %v", types.ErrMalformedEvent, err)
	}
	return &fill, nil
}

// contractMsgBody accepts the inline JSON object form and the base64 string form of msg.
func contractMsgBody(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: decode msg string: %v", types.ErrMalformedEvent, err)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode msg base64: %v", types.ErrMalformedEvent, err)
	}
	return b, nil
}

func toOrder(tx types.TxResponse, sender string, f *fillOrder, ts time.Time) (types.OrderFilled, error) {
	if sender == "" {
		return types.OrderFilled{}, fmt.Errorf("%w: message missing field %q", types.ErrMalformedEvent, "sender")
	}
	if f.Order == nil {
		return types.OrderFilled{}, missingField("order")
	}
	o := f.Order
	switch {
	case o.AmountIn == nil:
		return types.OrderFilled{}, missingField("amount_in")
	case o.AmountOut == nil:
		return types.OrderFilled{}, missingField("amount_out")
	}
	domain, err := domainString(o.SourceDomain)
	if err != nil {
		return types.OrderFilled{}, err
	}

	revenue, err := types.SolverRevenue(*o.AmountIn, *o.AmountOut)
	if err != nil {
		return types.OrderFilled{}, err
	}

	return types.OrderFilled{
		TxHash:             tx.TxHash,
		Sender:             sender,
		Filler:             f.Filler,
		AmountIn:           *o.AmountIn,
		AmountOut:          *o.AmountOut,
		SourceDomain:       domain,
		SolverRevenue:      revenue,
		Height:             uint64(tx.Height),
		Code:               tx.Code,
		IngestionTimestamp: ts,
	}, nil
}

// domainString renders source_domain, which is a number on the wire, as a decimal string.
func domainString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", missingField("source_domain")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", fmt.Errorf("%w: invalid source_domain %s", types.ErrMalformedEvent, string(raw))
		}
		return s, nil
	}
	n, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return "", fmt.Errorf("%w: invalid source_domain %s", types.ErrMalformedEvent, string(raw))
	}
	return strconv.FormatUint(n, 10), nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: fill_order missing field %q", types.ErrMalformedEvent, name)
}

// RawFromTxResponse builds the audit row for tx.
func RawFromTxResponse(tx types.TxResponse) types.RawTxResponse {
	return types.RawTxResponse{
		TxHash:     tx.TxHash,
		Height:     uint64(tx.Height),
		TxResponse: []byte(tx.Raw),
		Valid:      tx.Code == 0,
	}
}
