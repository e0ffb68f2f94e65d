package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/orderfill-indexer/internal/types"
)

func TestOrderFilledEnvelope(t *testing.T) {
	t.Parallel()
	o := &types.OrderFilled{
		TxHash: "ABC", Sender: "0xa", Filler: "osmo1f", AmountIn: "1000000000000000000000",
		AmountOut: "999999999999999999000", SourceDomain: "1", SolverRevenue: 1000, Height: 77,
		IngestionTimestamp: time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC),
	}

	env, err := NewOrderFilled(o)
	require.NoError(t, err)
	assert.Equal(t, TypeOrderFilled, env.Type)
	assert.Equal(t, VersionOrderFilled, env.Version)
	assert.Equal(t, "ABC", env.ID)
	assert.Equal(t, "2024-11-05T12:00:00Z", env.TS)

	b, err := env.Marshal()
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	data := wire["data"].(map[string]any)
	assert.Equal(t, "1000000000000000000000", data["amount_in"], "amounts stay strings")

	opened, err := Open(b)
	require.NoError(t, err)
	got, err := opened.OrderFilled()
	require.NoError(t, err)
	assert.Equal(t, o, got)
}

func TestEnvelope_OrderFilled_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		env  *Envelope
		is   error
	}{
		{"wrong type", New("block", 1, "", "", json.RawMessage(`{}`)), ErrUnexpectedType},
		{"wrong version", New(TypeOrderFilled, 2, "", "", json.RawMessage(`{}`)), ErrUnexpectedType},
		{"missing hash", New(TypeOrderFilled, 1, "", "", json.RawMessage(`{"sender":"0xa"}`)), types.ErrMalformedEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.env.OrderFilled()
			require.ErrorIs(t, err, tt.is)
		})
	}

	_, err := New(TypeOrderFilled, 1, "", "", json.RawMessage(`{"tx_hash": 5}`)).OrderFilled()
	require.Error(t, err)
}

func TestOpen_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, err := Open([]byte("{not json"))
	require.Error(t, err)
}
