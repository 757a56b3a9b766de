package crawler

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"prodcrawl/internal/platform"
)

// urlList yields the configured URLs of a direct-url run.
type urlList struct {
	urls []string
	pos  int
}

func (s *urlList) next(ctx context.Context) (string, bool) {
	for s.pos < len(s.urls) {
		u := strings.TrimSpace(s.urls[s.pos])
		s.pos++
		if u != "" {
			return u, true
		}
	}
	return "", false
}

// listingSource walks paginated listing pages lazily, fetching the next page
// only once the previous page's items are consumed.
type listingSource struct {
	o      *Orchestrator
	lister platform.Lister
	plan   Plan
	pageNo int
	queue  []string
	done   bool
}

func (s *listingSource) next(ctx context.Context) (string, bool) {
	for len(s.queue) == 0 {
		if s.done || s.pageNo >= maxListingPages {
			return "", false
		}
		s.fetch(ctx)
		if ctx.Err() != nil {
			return "", false
		}
	}
	u := s.queue[0]
	s.queue = s.queue[1:]
	return u, true
}

// fetch loads the next listing page. Any failure ends pagination.
func (s *listingSource) fetch(ctx context.Context) {
	s.pageNo++
	log := s.o.log.WithFields(logrus.Fields{"mode": s.plan.Mode, "page": s.pageNo})

	listURL, err := s.lister.ListingURL(s.plan.Mode, s.plan.Params, s.pageNo)
	if err != nil {
		log.WithError(err).Error("Cannot build listing URL")
		s.done = true
		return
	}
	if err := s.o.limiter.Wait(ctx); err != nil {
		s.done = true
		return
	}

	page, release, err := s.o.open(context.WithoutCancel(ctx), listURL)
	if err != nil {
		log.WithError(err).WithField("url", listURL).Warn("Listing page failed, ending pagination")
		s.done = true
		return
	}
	listing, err := s.lister.ExtractListing(ctx, page)
	release()
	if err != nil {
		log.WithError(err).WithField("url", listURL).Warn("Listing extraction failed, ending pagination")
		s.done = true
		return
	}

	log.WithField("items", len(listing.ItemURLs)).Debug("Listing page loaded")
	s.queue = append(s.queue, listing.ItemURLs...)
	if !listing.HasNext || len(listing.ItemURLs) == 0 {
		s.done = true
	}
}
