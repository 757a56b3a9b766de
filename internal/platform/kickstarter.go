package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"prodcrawl/internal/browser"
	"prodcrawl/internal/domain"
)

// Kickstarter extracts projects from kickstarter.com. Project data comes from
// the JSON embedded in the page header; the price is the cheapest reward.
type Kickstarter struct {
	BaseURL string
	Log     logrus.FieldLogger
}

// NewKickstarter creates the Kickstarter adapter.
func NewKickstarter() *Kickstarter {
	return &Kickstarter{BaseURL: "https://www.kickstarter.com", Log: discardLogger()}
}

func (k *Kickstarter) Platform() domain.Platform { return domain.PlatformKickstarter }

type ksMoney struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type ksProject struct {
	PID         json.Number `json:"pid"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Currency    string      `json:"currency"`
	ImageURL    string      `json:"imageUrl"`
	State       string      `json:"state"`
	Video       *struct {
		VideoSources struct {
			High struct {
				Src string `json:"src"`
			} `json:"high"`
			Base struct {
				Src string `json:"src"`
			} `json:"base"`
		} `json:"videoSources"`
	} `json:"video"`
	Category struct {
		Name           string `json:"name"`
		ParentCategory *struct {
			Name string `json:"name"`
		} `json:"parentCategory"`
	} `json:"category"`
	Location struct {
		DisplayableName string `json:"displayableName"`
	} `json:"location"`
	CommentsCount int `json:"commentsCount"`
	Rewards       struct {
		Nodes []struct {
			Amount ksMoney `json:"amount"`
		} `json:"nodes"`
	} `json:"rewards"`
}

type ksInitial struct {
	Project ksProject `json:"project"`
}

func (k *Kickstarter) Extract(ctx context.Context, page browser.Page) (*RawRecord, error) {
	pageURL := page.URL()
	rec := &RawRecord{Platform: k.Platform(), SourceURL: pageURL}

	var p ksProject
	if raw, ok := page.Attr(`#react-project-header`, "data-initial"); ok {
		var initial ksInitial
		if err := json.Unmarshal([]byte(raw), &initial); err == nil {
			p = initial.Project
		} else {
			k.Log.WithError(err).WithField("url", pageURL).Debug("Malformed project payload, falling back to page markup")
		}
	}

	rec.SourceItemID = p.PID.String()
	rec.Title = strings.TrimSpace(p.Name)
	if rec.Title == "" {
		rec.Title = firstAttr(page, "content", `meta[property="og:title"]`)
	}
	if rec.Title == "" {
		return nil, missing(k.Platform(), "title", pageURL)
	}

	rec.Description = strings.TrimSpace(p.Description)
	if rec.Description == "" {
		rec.Description = firstAttr(page, "content", `meta[name="description"]`)
	}

	rec.Currency = strings.ToUpper(p.Currency)
	var tiers []float64
	for _, n := range p.Rewards.Nodes {
		if v, err := strconv.ParseFloat(n.Amount.Amount, 64); err == nil && v > 0 {
			tiers = append(tiers, v)
			if rec.Currency == "" {
				rec.Currency = strings.ToUpper(n.Amount.Currency)
			}
		}
	}
	if len(tiers) == 0 {
		for _, t := range page.Texts(`.pledge__amount .money`) {
			if v, cur, ok := parsePrice(t); ok && v > 0 {
				tiers = append(tiers, v)
				if rec.Currency == "" {
					rec.Currency = cur
				}
			}
		}
	}
	if len(tiers) > 0 {
		lowest := tiers[0]
		for _, v := range tiers[1:] {
			if v < lowest {
				lowest = v
			}
		}
		rec.Price = floatPtr(lowest)
	} else {
		// Projects without reward tiers are kept; the price is explicitly unknown.
		rec.PriceUnavailable = true
	}
	if rec.Currency == "" {
		rec.Currency = "USD"
	}

	rec.ThumbnailURL = absURL(pageURL, p.ImageURL)
	if rec.ThumbnailURL == "" {
		rec.ThumbnailURL = absURL(pageURL, firstAttr(page, "content", `meta[property="og:image"]`))
	}
	if p.Video != nil {
		rec.VideoURL = p.Video.VideoSources.High.Src
		if rec.VideoURL == "" {
			rec.VideoURL = p.Video.VideoSources.Base.Src
		}
	}

	var refs []string
	for _, n := range page.All(`.rte__content img`) {
		if v, ok := n.Attr("", "data-src"); ok {
			refs = append(refs, v)
		} else if v, ok := n.Attr("", "src"); ok {
			refs = append(refs, v)
		}
	}
	rec.Images = absURLs(pageURL, refs)

	rec.ReviewCount = p.CommentsCount
	parent := ""
	if p.Category.ParentCategory != nil {
		parent = p.Category.ParentCategory.Name
	}
	rec.Tags = uniqueTags(parent, p.Category.Name, p.Location.DisplayableName, p.State)

	return rec, nil
}

var ksSorts = map[domain.CrawlMode]string{
	domain.ModePopular:  "popularity",
	domain.ModeAmount:   "most_funded",
	domain.ModeRecent:   "newest",
	domain.ModeClosing:  "end_date",
	domain.ModeSearch:   "magic",
	domain.ModeCategory: "magic",
}

func (k *Kickstarter) Modes() []domain.CrawlMode {
	return []domain.CrawlMode{
		domain.ModeSearch, domain.ModeCategory,
		domain.ModePopular, domain.ModeAmount, domain.ModeRecent, domain.ModeClosing,
	}
}

func (k *Kickstarter) ListingURL(mode domain.CrawlMode, params domain.CrawlParams, pageNo int) (string, error) {
	sort, ok := ksSorts[mode]
	if !ok {
		return "", fmt.Errorf("kickstarter does not support crawl mode %q", mode)
	}
	q := url.Values{}
	q.Set("sort", sort)
	q.Set("page", strconv.Itoa(pageNo))
	if mode == domain.ModeSearch {
		q.Set("term", params.Keyword)
	}
	if params.Category != "" {
		q.Set("category_id", params.Category)
	}
	return k.BaseURL + "/discover/advanced?" + q.Encode(), nil
}

type ksCard struct {
	URLs struct {
		Web struct {
			Project string `json:"project"`
		} `json:"web"`
	} `json:"urls"`
}

func (k *Kickstarter) ExtractListing(ctx context.Context, page browser.Page) (Listing, error) {
	seen := map[string]bool{}
	var items []string
	for _, raw := range page.Attrs(`[data-project]`, "data-project") {
		var c ksCard
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			continue
		}
		u := c.URLs.Web.Project
		if i := strings.IndexByte(u, '?'); i >= 0 {
			u = u[:i]
		}
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		items = append(items, u)
	}
	hasNext := len(items) > 0 && len(page.All(`.load_more`)) > 0
	return Listing{ItemURLs: items, HasNext: hasNext}, nil
}
