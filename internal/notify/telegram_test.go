package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodcrawl/internal/affiliate"
	"prodcrawl/internal/crawler"
	"prodcrawl/internal/domain"
)

type fakeSender struct {
	sent []*tgbot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	f.sent = append(f.sent, params)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: len(f.sent)}, nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleReport() *crawler.Report {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	return &crawler.Report{
		Platform:     domain.PlatformEbay,
		Mode:         domain.ModeSearch,
		Started:      start,
		Finished:     start.Add(95 * time.Second),
		Inserted:     2,
		Updated:      1,
		Skipped:      1,
		PriceChanges: 1,
		Outcomes: []crawler.ItemOutcome{
			{URL: "https://www.ebay.com/itm/100000001", Status: crawler.StatusInserted},
			{URL: "https://www.ebay.com/itm/100000002", Status: crawler.StatusSkipped, Reason: crawler.ReasonExtraction},
		},
	}
}

func TestCrawlFinished_SendsSummaryToChat(t *testing.T) {
	s := &fakeSender{}
	n := New(s, 4242, quietLogger())

	require.NoError(t, n.CrawlFinished(context.Background(), sampleReport()))
	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(4242), s.sent[0].ChatID)
	assert.Contains(t, s.sent[0].Text, "Crawl finished: ebay / search")
	assert.Contains(t, s.sent[0].Text, "inserted 2, updated 1, skipped 1, price changes 1")
	assert.Contains(t, s.sent[0].Text, "elapsed 1m35s")
	assert.Contains(t, s.sent[0].Text, "- https://www.ebay.com/itm/100000002 (extraction)")
	assert.NotContains(t, s.sent[0].Text, "100000001")
}

func TestFormatReport_TruncatesSkipList(t *testing.T) {
	r := sampleReport()
	r.Outcomes = nil
	r.Skipped = maxListedSkips + 3
	for i := 0; i < r.Skipped; i++ {
		r.Outcomes = append(r.Outcomes, crawler.ItemOutcome{
			URL: fmt.Sprintf("https://www.ebay.com/itm/2000000%02d", i), Status: crawler.StatusSkipped, Reason: crawler.ReasonNavigation,
		})
	}
	r.Interrupted = true

	text := FormatReport(r)
	assert.Contains(t, text, "(interrupted)")
	assert.Contains(t, text, "and 3 more")
	assert.NotContains(t, text, "200000012")
}

func TestDisabledNotifierDropsMessages(t *testing.T) {
	n, err := NewTelegram("", 0, quietLogger())
	require.NoError(t, err)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Send(context.Background(), "hello"))
}

func TestSendFailureIsReturned(t *testing.T) {
	s := &fakeSender{err: errors.New("Forbidden: bot was blocked by the user")}
	n := New(s, 1, quietLogger())

	err := n.AffiliateFinished(context.Background(), "link", 0, affiliate.LinkReport{Created: 2, Failed: 1}, nil)
	require.Error(t, err)
	assert.Contains(t, s.sent[0].Text, "links created 2, existing 0, failed 1")
}
