// Package crawler drives one crawl run: it enumerates candidate item URLs for
// the configured mode and processes them strictly one at a time.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"prodcrawl/internal/browser"
	"prodcrawl/internal/currency"
	"prodcrawl/internal/domain"
	"prodcrawl/internal/identity"
	"prodcrawl/internal/ingest"
	"prodcrawl/internal/metrics"
	"prodcrawl/internal/platform"
)

// Ingester persists one extracted item.
type Ingester interface {
	Ingest(ctx context.Context, rec *platform.RawRecord, reviews []domain.Review) (ingest.Result, error)
}

// Plan describes one run.
type Plan struct {
	Mode       domain.CrawlMode
	Params     domain.CrawlParams
	MaxReviews int
}

// Item statuses in a Report.
const (
	StatusInserted = "inserted"
	StatusUpdated  = "updated"
	StatusSkipped  = "skipped"
)

// Skip reasons.
const (
	ReasonNavigation = "navigation"
	ReasonExtraction = "extraction"
	ReasonRate       = "rate-unavailable"
	ReasonStorage    = "storage"
)

// ItemOutcome records what happened to one item URL.
type ItemOutcome struct {
	URL      string
	Identity string
	Status   string
	Reason   string
	Err      string
	Duration time.Duration

	PriceChanged bool
}

// Report summarizes a run.
type Report struct {
	Platform     domain.Platform
	Mode         domain.CrawlMode
	Started      time.Time
	Finished     time.Time
	Outcomes     []ItemOutcome
	Inserted     int
	Updated      int
	Skipped      int
	PriceChanges int
	// Interrupted is set when a stop signal ended the run early.
	Interrupted bool
}

func (r *Report) add(o ItemOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusInserted:
		r.Inserted++
	case StatusUpdated:
		r.Updated++
	default:
		r.Skipped++
	}
	if o.PriceChanged {
		r.PriceChanges++
	}
}

const maxListingPages = 100

// Orchestrator processes items sequentially through one navigator.
type Orchestrator struct {
	nav      browser.Navigator
	adapter  platform.Adapter
	ingester Ingester
	limiter  *rate.Limiter
	now      func() time.Time
	log      logrus.FieldLogger
}

// New creates an Orchestrator. Navigations are spaced at least pacing apart.
func New(nav browser.Navigator, adapter platform.Adapter, ingester Ingester, pacing time.Duration, logger logrus.FieldLogger) *Orchestrator {
	limit := rate.Inf
	if pacing > 0 {
		limit = rate.Every(pacing)
	}
	return &Orchestrator{
		nav:      nav,
		adapter:  adapter,
		ingester: ingester,
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
		log:      logger.WithFields(logrus.Fields{"component": "crawler", "platform": adapter.Platform()}),
	}
}

// itemSource yields candidate item URLs in enumeration order.
type itemSource interface {
	next(ctx context.Context) (string, bool)
}

// Run executes plan. A stop signal on ctx is honored between items only; the
// item in flight always completes. Per-item failures are recorded as skips.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (*Report, error) {
	if !platform.Supports(o.adapter, plan.Mode) {
		return nil, fmt.Errorf("platform %s does not support crawl mode %s", o.adapter.Platform(), plan.Mode)
	}

	var src itemSource
	if plan.Mode == domain.ModeDirectURL {
		src = &urlList{urls: plan.Params.URLs}
	} else {
		src = &listingSource{o: o, lister: o.adapter.(platform.Lister), plan: plan}
	}

	report := &Report{Platform: o.adapter.Platform(), Mode: plan.Mode, Started: o.now()}
	log := o.log.WithField("mode", plan.Mode)
	log.WithField("max_items", plan.Params.MaxItems).Info("Crawl run started")

	seen := map[string]bool{}
	processed := 0
	for plan.Params.MaxItems <= 0 || processed < plan.Params.MaxItems {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		u, ok := src.next(ctx)
		if !ok {
			report.Interrupted = ctx.Err() != nil
			break
		}
		key := u
		if n, err := identity.NormalizeURL(u); err == nil {
			key = n
		}
		if seen[key] {
			log.WithField("url", u).Debug("Skipping URL already seen in this run")
			continue
		}
		seen[key] = true

		if err := o.limiter.Wait(ctx); err != nil {
			report.Interrupted = true
			break
		}
		outcome := o.processItem(context.WithoutCancel(ctx), u, plan)
		report.add(outcome)
		processed++
	}

	report.Finished = o.now()
	log.WithFields(logrus.Fields{
		"inserted":      report.Inserted,
		"updated":       report.Updated,
		"skipped":       report.Skipped,
		"price_changes": report.PriceChanges,
		"interrupted":   report.Interrupted,
		"elapsed":       report.Finished.Sub(report.Started).Round(time.Millisecond).String(),
	}).Info("Crawl run finished")
	return report, nil
}

// open navigates to url, retrying exactly once when the load times out.
func (o *Orchestrator) open(ctx context.Context, url string) (browser.Page, func(), error) {
	page, release, err := o.nav.Open(ctx, url)
	if errors.Is(err, browser.ErrNavigationTimeout) {
		o.log.WithField("url", url).Warn("Page load timed out, retrying once")
		if werr := o.limiter.Wait(ctx); werr != nil {
			return nil, nil, werr
		}
		page, release, err = o.nav.Open(ctx, url)
	}
	return page, release, err
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, platform.ErrExtraction):
		return ReasonExtraction
	case errors.Is(err, currency.ErrRateUnavailable):
		return ReasonRate
	default:
		return ReasonStorage
	}
}

func (o *Orchestrator) processItem(ctx context.Context, url string, plan Plan) (out ItemOutcome) {
	start := time.Now()
	out = ItemOutcome{URL: url}
	log := o.log.WithField("url", url)
	defer func() {
		out.Duration = time.Since(start)
		metrics.RecordItem(string(o.adapter.Platform()), out.Status, out.Duration)
	}()
	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusSkipped
			out.Reason = ReasonExtraction
			out.Err = fmt.Sprintf("panic: %v", r)
			log.WithFields(logrus.Fields{"reason": out.Reason, "panic": r}).Error("Item processing panicked, skipping")
		}
	}()

	skip := func(reason string, err error) ItemOutcome {
		out.Status = StatusSkipped
		out.Reason = reason
		out.Err = err.Error()
		log.WithError(err).WithFields(logrus.Fields{"reason": reason, "identity": out.Identity}).Warn("Skipping item")
		return out
	}

	page, release, err := o.open(ctx, url)
	if err != nil {
		return skip(ReasonNavigation, err)
	}
	defer release()

	rec, err := o.adapter.Extract(ctx, page)
	if err != nil {
		return skip(ReasonExtraction, err)
	}
	if rec.SourceItemID != "" {
		out.Identity = domain.IdentityKey{Platform: rec.Platform, Key: rec.SourceItemID}.String()
	}

	var reviews []domain.Review
	if rx, ok := o.adapter.(platform.ReviewExtractor); ok && plan.MaxReviews > 0 {
		reviews = rx.ExtractReviews(ctx, page, plan.MaxReviews)
	}

	res, err := o.ingester.Ingest(ctx, rec, reviews)
	if err != nil {
		return skip(skipReason(err), err)
	}

	out.Identity = res.Product.Identity().String()
	switch res.Outcome {
	case ingest.OutcomeInserted:
		out.Status = StatusInserted
	default:
		out.Status = StatusUpdated
	}
	log.WithFields(logrus.Fields{
		"identity":      out.Identity,
		"status":        out.Status,
		"price_changed": res.PriceChanged,
		"reviews":       res.ReviewsStored,
	}).Info("Item stored")
	out.PriceChanged = res.PriceChanged
	return out
}
