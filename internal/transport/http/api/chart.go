package api

import (
	"net/http"
	"strconv"
	"time"

	"conflux/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleSettlementChart renders the settled profit history as a line chart.
func (r *Router) handleSettlementChart(c *gin.Context) {
	if r.Settlements == nil {
		c.String(http.StatusServiceUnavailable, "settlement history not enabled")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	recs, err := r.Settlements.ListSettlements(c.Request.Context(), limit)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	labels := make([]string, 0, len(recs))
	points := make([]opts.LineData, 0, len(recs))
	// ListSettlements is newest-first; the chart reads left to right in time.
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		when := rec.SettledAt
		if when.IsZero() {
			when = rec.CreatedAt
		}
		labels = append(labels, when.Format(time.DateTime))
		var profit float64
		if raw, perr := ledger.ParseSmallestUnit(rec.TotalProfit, 0); perr == nil {
			profit, _ = strconv.ParseFloat(ledger.FromSmallestUnit(raw, r.Decimals), 64)
		}
		points = append(points, opts.LineData{Value: profit})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Settled profit per cycle",
			Subtitle: "display units",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(labels).
		AddSeries("profit", points,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(c.Writer); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
	}
}
