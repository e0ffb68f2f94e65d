package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/data"
)

// revenueExponent is the decimal exponent of the USDC amounts revenue is counted in.
const revenueExponent = 6

// ChainIDToNetwork names the source domains orders are filled from.
var ChainIDToNetwork = map[string]string{
	"42161":     "arbitrum",
	"43114":     "avalanche",
	"8453":      "base",
	"56":        "bnb",
	"1":         "ethereum",
	"137":       "polygon",
	"osmosis-1": "osmosis",
}

// NetworkName returns the network of a source domain, or the domain itself when unknown.
func NetworkName(domain string) string {
	if name, ok := ChainIDToNetwork[domain]; ok {
		return name
	}
	return domain
}

type handler struct {
	store Store
	log   *zap.SugaredLogger
}

type ordersFilledStats struct {
	TotalSolverRevenue string         `json:"total_solver_revenue"`
	TotalOrderCount    string         `json:"total_order_count"`
	Networks           []networkStats `json:"networks"`
}

type networkStats struct {
	Network            string `json:"network"`
	OrderCount         string `json:"order_count"`
	TotalSolverRevenue string `json:"total_solver_revenue"`
}

func (h *handler) health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) orders(c *gin.Context) {
	var (
		orders []types.OrderFilled
		err    error
	)
	if sender := c.Query("sender"); sender != "" {
		orders, err = h.store.OrdersBySender(c.Request.Context(), sender)
	} else {
		orders, err = h.store.AllOrders(c.Request.Context())
	}
	if err != nil {
		h.log.Errorw("failed to query orders", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get orders"})
		return
	}
	if orders == nil {
		orders = []types.OrderFilled{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// ordersFilledStats aggregates over all stored records of the filler. Revenue is
// reported in whole units unless as_integer is set.
func (h *handler) ordersFilledStats(c *gin.Context) {
	filler := c.Query("filler")
	if filler == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": data.ErrFillerRequired.Error()})
		return
	}
	asInteger := c.Query("as_integer") != ""

	stats, err := h.store.FilledOrderStats(c.Request.Context(), filler)
	if err != nil {
		h.log.Errorw("failed to query filler stats", "filler", filler, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders_filled": toStatsResponse(stats, asInteger)})
}

func toStatsResponse(stats *data.OrderStats, asInteger bool) ordersFilledStats {
	resp := ordersFilledStats{
		TotalSolverRevenue: formatRevenue(stats.TotalSolverRevenue, asInteger),
		TotalOrderCount:    strconv.FormatInt(stats.TotalOrderCount, 10),
		Networks:           make([]networkStats, 0, len(stats.Domains)),
	}
	for _, d := range stats.Domains {
		resp.Networks = append(resp.Networks, networkStats{
			Network:            NetworkName(d.SourceDomain),
			OrderCount:         strconv.FormatInt(d.OrderCount, 10),
			TotalSolverRevenue: formatRevenue(d.TotalSolverRevenue, asInteger),
		})
	}
	return resp
}

func formatRevenue(v int64, asInteger bool) string {
	if asInteger {
		return strconv.FormatInt(v, 10)
	}
	return decimal.NewFromInt(v).Shift(-revenueExponent).String()
}
