// Package currency converts source-currency prices into the display currency
// using a cached exchange rate table.
package currency

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"prodcrawl/internal/metrics"
)

// ErrRateUnavailable is returned when no rate for a currency was ever fetched.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Rates is one snapshot of an exchange rate table. Values are units of each
// currency per one unit of Base.
type Rates struct {
	Base      string
	Values    map[string]float64
	FetchedAt time.Time
}

func (r *Rates) rate(code string) (float64, bool) {
	if code == r.Base {
		return 1, true
	}
	v, ok := r.Values[code]
	return v, ok && v > 0
}

// RateSource fetches a fresh rate table.
type RateSource interface {
	FetchRates(ctx context.Context) (*Rates, error)
}

// minorUnits lists currencies whose smallest commonly used unit is not 1/100.
var minorUnits = map[string]int{
	"KRW": 0,
	"JPY": 0,
	"VND": 0,
	"CLP": 0,
	"ISK": 0,
	"TWD": 0,
	"HUF": 0,
	"KWD": 3,
	"BHD": 3,
}

// MinorUnits returns the number of decimals normally used for code.
func MinorUnits(code string) int {
	if d, ok := minorUnits[strings.ToUpper(code)]; ok {
		return d
	}
	return 2
}

// Round rounds amount to the smallest normally used unit of code.
func Round(amount float64, code string) float64 {
	scale := math.Pow10(MinorUnits(code))
	return math.Round(amount*scale) / scale
}

// Converter holds the process-wide rate cache for one run.
type Converter struct {
	source   RateSource
	display  string
	interval time.Duration
	now      func() time.Time
	log      logrus.FieldLogger

	mu          sync.Mutex
	rates       *Rates
	lastAttempt time.Time
}

// NewConverter creates a converter targeting the display currency.
func NewConverter(source RateSource, display string, interval time.Duration, logger logrus.FieldLogger) *Converter {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Converter{
		source:   source,
		display:  strings.ToUpper(display),
		interval: interval,
		now:      time.Now,
		log:      logger.WithField("component", "currency"),
	}
}

// ToDisplayCurrency converts amount from sourceCurrency to the display currency.
func (c *Converter) ToDisplayCurrency(ctx context.Context, amount float64, sourceCurrency string) (float64, error) {
	src := strings.ToUpper(strings.TrimSpace(sourceCurrency))
	if src == "" {
		return 0, fmt.Errorf("%w: empty source currency", ErrRateUnavailable)
	}
	if src == c.display {
		return Round(amount, c.display), nil
	}

	rates := c.current(ctx)
	if rates == nil {
		return 0, fmt.Errorf("%w: %s->%s", ErrRateUnavailable, src, c.display)
	}
	from, ok := rates.rate(src)
	if !ok {
		return 0, fmt.Errorf("%w: no rate for %s", ErrRateUnavailable, src)
	}
	to, ok := rates.rate(c.display)
	if !ok {
		return 0, fmt.Errorf("%w: no rate for %s", ErrRateUnavailable, c.display)
	}
	return Round(amount*to/from, c.display), nil
}

// current returns the cached table, refreshing it first when due. A failed
// refresh falls back to the last good table.
func (c *Converter) current(ctx context.Context) *Rates {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	due := c.rates == nil || now.Sub(c.rates.FetchedAt) >= c.interval
	if !due {
		return c.rates
	}
	if c.rates != nil && now.Sub(c.lastAttempt) < c.interval {
		return c.rates
	}

	c.lastAttempt = now
	fresh, err := c.source.FetchRates(ctx)
	if err != nil {
		metrics.RecordFXRefreshFailure()
		if c.rates == nil {
			c.log.WithError(err).Error("Exchange rate refresh failed and no cached rates exist")
			return nil
		}
		c.log.WithError(err).WithFields(logrus.Fields{
			"fetched_at": c.rates.FetchedAt,
			"stale_for":  now.Sub(c.rates.FetchedAt).Round(time.Second).String(),
		}).Warn("Exchange rate refresh failed, using stale rates")
		return c.rates
	}
	if fresh.FetchedAt.IsZero() {
		fresh.FetchedAt = now
	}
	fresh.Base = strings.ToUpper(fresh.Base)
	c.rates = fresh
	c.log.WithFields(logrus.Fields{
		"base":  fresh.Base,
		"count": len(fresh.Values),
	}).Info("Exchange rates refreshed")
	return c.rates
}
