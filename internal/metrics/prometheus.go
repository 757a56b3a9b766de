package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	registry = prometheus.NewRegistry()

	itemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_items_total",
			Help: "Crawled items by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)
	priceChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_price_changes_total",
			Help: "Price history rows written.",
		},
		[]string{"platform"},
	)
	itemDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawl_item_duration_seconds",
			Help:    "Wall time spent on one item including navigation.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"platform"},
	)
	fxRefreshFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fx_refresh_failures_total",
			Help: "Exchange rate refreshes that failed.",
		},
	)
	affiliateRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_requests_total",
			Help: "Partner API calls by method and result.",
		},
		[]string{"method", "result"},
	)
)

func init() {
	registry.MustRegister(itemsTotal, priceChangesTotal, itemDuration, fxRefreshFailures, affiliateRequests)
}

// RecordItem counts one processed item. outcome is inserted, updated or skipped.
func RecordItem(platform, outcome string, duration time.Duration) {
	itemsTotal.WithLabelValues(platform, outcome).Inc()
	itemDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordPriceChange counts one written price history row.
func RecordPriceChange(platform string) {
	priceChangesTotal.WithLabelValues(platform).Inc()
}

// RecordFXRefreshFailure counts one failed exchange rate refresh.
func RecordFXRefreshFailure() {
	fxRefreshFailures.Inc()
}

// RecordAffiliateRequest counts one partner API call.
func RecordAffiliateRequest(method, result string) {
	affiliateRequests.WithLabelValues(method, result).Inc()
}

// Push sends every collector to a Pushgateway. Batch runs call it once on exit.
func Push(gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
