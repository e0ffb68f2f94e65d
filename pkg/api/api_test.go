package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/data"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) OrdersBySender(ctx context.Context, sender string) ([]types.OrderFilled, error) {
	args := m.Called(ctx, sender)
	o, _ := args.Get(0).([]types.OrderFilled)
	return o, args.Error(1)
}

func (m *mockStore) AllOrders(ctx context.Context) ([]types.OrderFilled, error) {
	args := m.Called(ctx)
	o, _ := args.Get(0).([]types.OrderFilled)
	return o, args.Error(1)
}

func (m *mockStore) FilledOrderStats(ctx context.Context, filler string) (*data.OrderStats, error) {
	args := m.Called(ctx, filler)
	s, _ := args.Get(0).(*data.OrderStats)
	return s, args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func serve(t *testing.T, store Store, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(store, zaptest.NewLogger(t).Sugar())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestOrders_BySender(t *testing.T) {
	store := &mockStore{}
	store.On("OrdersBySender", mock.Anything, "0xa").
		Return([]types.OrderFilled{{TxHash: "A", Sender: "0xa", Height: 5}}, nil)

	rec := serve(t, store, "/orders?sender=0xa")
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []types.OrderFilled
	require.NoError(t, json.Unmarshal(decode(t, rec)["orders"], &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "A", orders[0].TxHash)
	store.AssertNotCalled(t, "AllOrders", mock.Anything)
}

func TestOrders_AllWhenNoSender(t *testing.T) {
	store := &mockStore{}
	store.On("AllOrders", mock.Anything).Return(nil, nil)

	rec := serve(t, store, "/orders")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decode(t, rec)["orders"]))
}

func TestOrders_StoreError(t *testing.T) {
	store := &mockStore{}
	store.On("AllOrders", mock.Anything).Return(nil, errors.New("db locked"))

	rec := serve(t, store, "/orders")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOrdersFilledStats_RequiresFiller(t *testing.T) {
	rec := serve(t, &mockStore{}, "/stats/orders_filled")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `"filler address is required"`, string(decode(t, rec)["error"]))
}

func TestOrdersFilledStats(t *testing.T) {
	stats := &data.OrderStats{}
	stats.Add(data.DomainStats{SourceDomain: "42161", OrderCount: 2, TotalSolverRevenue: 1500000})
	stats.Add(data.DomainStats{SourceDomain: "999", OrderCount: 1, TotalSolverRevenue: 250})

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "shifted to whole units",
			query: "/stats/orders_filled?filler=osmo1f",
			want: `{
				"total_solver_revenue": "1.50025",
				"total_order_count": "3",
				"networks": [
					{"network": "arbitrum", "order_count": "2", "total_solver_revenue": "1.5"},
					{"network": "999", "order_count": "1", "total_solver_revenue": "0.00025"}
				]
			}`,
		},
		{
			name:  "as integer",
			query: "/stats/orders_filled?filler=osmo1f&as_integer=true",
			want: `{
				"total_solver_revenue": "1500250",
				"total_order_count": "3",
				"networks": [
					{"network": "arbitrum", "order_count": "2", "total_solver_revenue": "1500000"},
					{"network": "999", "order_count": "1", "total_solver_revenue": "250"}
				]
			}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			store.On("FilledOrderStats", mock.Anything, "osmo1f").Return(stats, nil)

			rec := serve(t, store, tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, string(decode(t, rec)["orders_filled"]))
		})
	}
}

func TestOrdersFilledStats_Empty(t *testing.T) {
	store := &mockStore{}
	store.On("FilledOrderStats", mock.Anything, "nobody").Return(&data.OrderStats{}, nil)

	rec := serve(t, store, "/stats/orders_filled?filler=nobody")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_solver_revenue":"0","total_order_count":"0","networks":[]}`,
		string(decode(t, rec)["orders_filled"]))
}

func TestHealth(t *testing.T) {
	store := &mockStore{}
	store.On("Ping", mock.Anything).Return(nil).Once()
	store.On("Ping", mock.Anything).Return(errors.New("closed")).Once()

	assert.Equal(t, http.StatusOK, serve(t, store, "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, store, "/health").Code)
}

func TestNetworkName(t *testing.T) {
	assert.Equal(t, "ethereum", NetworkName("1"))
	assert.Equal(t, "osmosis", NetworkName("osmosis-1"))
	assert.Equal(t, "12345", NetworkName("12345"))
}

func TestServer_StartShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", &mockStore{}, zaptest.NewLogger(t).Sugar())
	errCh := srv.Start()
	require.NoError(t, srv.Shutdown(t.Context()))
	for err := range errCh {
		require.NoError(t, err)
	}
}
