package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TxSearchRequest holds the tx search parameters. Zero Page and Limit are omitted.
type TxSearchRequest struct {
	Query   string
	OrderBy string
	Page    int
	Limit   int
}

// TxSearchResult is one page of the tx search endpoint.
type TxSearchResult struct {
	TxResponses []TxResponse      `json:"tx_responses"`
	Txs         []json.RawMessage `json:"txs"`
	Total       Uint64            `json:"total"`
}

// TxResponse is a transaction envelope as returned by the LCD. Raw keeps the
// undecoded JSON of the envelope for the audit table.
type TxResponse struct {
	TxHash string `json:"txhash"`
	Height Uint64 `json:"height"`
	Code   uint32 `json:"code"`
	Tx     struct {
		Body struct {
			Messages []json.RawMessage `json:"messages"`
		} `json:"body"`
	} `json:"tx"`

	Raw json.RawMessage `json:"-"`
}

func (t *TxResponse) UnmarshalJSON(b []byte) error {
	type plain TxResponse
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = TxResponse(p)
	t.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// Uint64 decodes both the proto3 JSON string form ("123") and plain numbers.
type Uint64 uint64

func (u *Uint64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 %s: %w", string(b), err)
	}
	*u = Uint64(v)
	return nil
}

