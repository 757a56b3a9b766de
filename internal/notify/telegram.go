// Package notify posts run summaries to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"prodcrawl/internal/affiliate"
	"prodcrawl/internal/crawler"
)

// maxListedSkips bounds how many skipped items a summary spells out.
const maxListedSkips = 10

// Sender is the part of *tgbot.Bot the notifier uses.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// Notifier sends summaries to one chat. A Notifier without a sender is
// disabled and drops every message.
type Notifier struct {
	sender Sender
	chatID int64
	log    logrus.FieldLogger
}

// NewTelegram creates a notifier backed by the Bot API. An empty token yields
// a disabled notifier.
func NewTelegram(token string, chatID int64, logger logrus.FieldLogger) (*Notifier, error) {
	log := logger.WithField("component", "notify")
	if token == "" || chatID == 0 {
		log.Info("Telegram notifier disabled")
		return &Notifier{log: log}, nil
	}

	// Skip the getMe round trip; a bad token surfaces on the first send.
	b, err := tgbot.New(token, tgbot.WithSkipGetMe())
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return New(b, chatID, logger), nil
}

// New creates a notifier around sender.
func New(sender Sender, chatID int64, logger logrus.FieldLogger) *Notifier {
	return &Notifier{sender: sender, chatID: chatID, log: logger.WithField("component", "notify")}
}

// Enabled reports whether messages are actually sent.
func (n *Notifier) Enabled() bool { return n.sender != nil }

// Send posts text. Delivery failures are returned but never retried.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if !n.Enabled() {
		return nil
	}
	_, err := n.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		n.log.WithError(err).WithField("chat_id", n.chatID).Error("Failed to send Telegram message")
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// CrawlFinished posts the summary of a crawl run.
func (n *Notifier) CrawlFinished(ctx context.Context, r *crawler.Report) error {
	return n.Send(ctx, FormatReport(r))
}

// AffiliateFinished posts the summary of an affiliate pass.
func (n *Notifier) AffiliateFinished(ctx context.Context, mode string, stored int, links affiliate.LinkReport, runErr error) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Affiliate %s finished\n", mode)
	switch mode {
	case "search":
		fmt.Fprintf(&b, "listings stored %d", stored)
	default:
		fmt.Fprintf(&b, "links created %d, existing %d, failed %d", links.Created, links.Existing, links.Failed)
	}
	if runErr != nil {
		fmt.Fprintf(&b, "\nstopped: %v", runErr)
	}
	return n.Send(ctx, b.String())
}

// FormatReport renders a crawl report as plain text.
func FormatReport(r *crawler.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Crawl finished: %s / %s\n", r.Platform, r.Mode)
	fmt.Fprintf(&b, "inserted %d, updated %d, skipped %d, price changes %d\n",
		r.Inserted, r.Updated, r.Skipped, r.PriceChanges)
	fmt.Fprintf(&b, "elapsed %s", r.Finished.Sub(r.Started).Round(time.Second))
	if r.Interrupted {
		b.WriteString(" (interrupted)")
	}

	listed := 0
	for _, o := range r.Outcomes {
		if o.Status != crawler.StatusSkipped {
			continue
		}
		if listed == 0 {
			b.WriteString("\nSkipped:")
		}
		if listed == maxListedSkips {
			fmt.Fprintf(&b, "\n… and %d more", r.Skipped-listed)
			break
		}
		fmt.Fprintf(&b, "\n- %s (%s)", o.URL, o.Reason)
		listed++
	}
	return b.String()
}
