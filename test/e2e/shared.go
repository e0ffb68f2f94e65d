//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/orderfill-indexer/internal/chainclient/cosmos"
	"github.com/ava-labs/orderfill-indexer/pkg/clickhouse"
)

func getEnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func queryCount(t *testing.T, ctx context.Context, ch clickhouse.Client, query string, args ...interface{}) uint64 {
	t.Helper()
	var cnt uint64
	require.NoError(t, ch.Conn().QueryRow(ctx, query, args...).Scan(&cnt))
	return cnt
}

func fillTx(hash string, height uint64, sender, domain string) string {
	return fmt.Sprintf(`{"txhash": %q, "height": "%d", "code": 0,
	  "tx": {"body": {"messages": [{
	    "@type": "/cosmwasm.wasm.v1.MsgExecuteContract",
	    "sender": %q,
	    "contract": %q,
	    "msg": {"fill_order": {"order": {
	      "sender": "0xordersender", "amount_in": "1000500", "amount_out": "1000000", "source_domain": %s
	    }, "filler": "osmo1filler"}}
	  }]}}}`, hash, height, sender, cosmos.ContractAddress, domain)
}

// lcdStub serves the tx search endpoint with a response that tests can swap
// between ingestion cycles.
type lcdStub struct {
	mu  sync.Mutex
	txs []string
}

func (s *lcdStub) set(txs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = txs
}

func (s *lcdStub) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		txs := s.txs
		s.mu.Unlock()
		stubs := make([]string, len(txs))
		for i := range stubs {
			stubs[i] = `{}`
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"txs": [%s], "tx_responses": [%s], "total": "%d"}`,
			strings.Join(stubs, ","), strings.Join(txs, ","), len(txs))
	}))
	t.Cleanup(srv.Close)
	return srv
}
