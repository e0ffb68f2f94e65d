package cosmos

import "encoding/json"

const (
	typeMsgExecuteContract = "/cosmwasm.wasm.v1.MsgExecuteContract"
	typeMsgExec            = "/cosmos.authz.v1beta1.MsgExec"

	fillOrderKey = "fill_order"
)

// txMessage covers the fields of the message types the mapper understands.
type txMessage struct {
	Type     string            `json:"@type"`
	Sender   string            `json:"sender"`
	Contract string            `json:"contract"`
	Msg      json.RawMessage   `json:"msg"`
	Msgs     []json.RawMessage `json:"msgs"`
}

type fillOrder struct {
	Order  *fastTransferOrder `json:"order"`
	Filler string             `json:"filler"`
}

type fastTransferOrder struct {
	Sender            string          `json:"sender"`
	Recipient         string          `json:"recipient"`
	AmountIn          *string         `json:"amount_in"`
	AmountOut         *string         `json:"amount_out"`
	Nonce             json.RawMessage `json:"nonce"`
	SourceDomain      json.RawMessage `json:"source_domain"`
	DestinationDomain json.RawMessage `json:"destination_domain"`
	TimeoutTimestamp  json.RawMessage `json:"timeout_timestamp"`
	Data              string          `json:"data,omitempty"`
}
