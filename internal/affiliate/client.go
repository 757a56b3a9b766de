// Package affiliate wraps the AliExpress affiliate (portals) open API: a
// signed, rate-limited HTTP client and a link generator service on top of it.
package affiliate

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"prodcrawl/internal/domain"
	"prodcrawl/internal/metrics"
)

const (
	methodProductQuery = "aliexpress.affiliate.product.query"
	methodLinkGenerate = "aliexpress.affiliate.link.generate"

	DefaultEndpoint = "https://api-sg.aliexpress.com/sync"
)

// Config holds partner credentials and call policy.
type Config struct {
	Endpoint   string
	AppKey     string
	AppSecret  string
	TrackingID string

	// MaxAttempts bounds calls per request when the partner throttles.
	MaxAttempts int
	BaseBackoff time.Duration
	// RPS caps outbound requests per second; zero disables the limiter.
	RPS     float64
	Timeout time.Duration
}

// Client calls the partner API. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client, filling unset policy fields with defaults.
func NewClient(cfg Config, logger logrus.FieldLogger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.WithField("component", "affiliate"),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sign computes the partner signature: HMAC-SHA256 keyed by the app secret
// over every parameter except sign, concatenated as key+value in key order,
// hex encoded in upper case.
func Sign(params url.Values, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "sign" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

type errorResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

type respResult struct {
	RespCode int             `json:"resp_code"`
	RespMsg  string          `json:"resp_msg"`
	Result   json.RawMessage `json:"result"`
}

// isThrottleCode matches the partner's call-limit error codes
// (ApiCallLimit, AppApiCallLimit, ...).
func isThrottleCode(code string) bool {
	return strings.Contains(strings.ToLower(code), "calllimit")
}

// call performs one signed request with backoff on throttling and decodes
// the method's result object into out.
func (c *Client) call(ctx context.Context, method string, params map[string]string, out any) error {
	var last *Error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.cfg.BaseBackoff << (attempt - 2)
			c.log.WithFields(logrus.Fields{"method": method, "attempt": attempt, "backoff": wait}).Warn("Partner API throttled, backing off")
			if err := c.sleep(ctx, wait); err != nil {
				return &Error{Kind: KindTransport, Method: method, Attempts: attempt - 1, Err: err}
			}
		}

		raw, throttled, err := c.do(ctx, method, params)
		if err != nil {
			err.Attempts = attempt
			metrics.RecordAffiliateRequest(method, string(err.Kind))
			return err
		}
		if throttled != nil {
			last = throttled
			continue
		}
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				metrics.RecordAffiliateRequest(method, string(KindDecode))
				return &Error{Kind: KindDecode, Method: method, Attempts: attempt, Err: err}
			}
		}
		metrics.RecordAffiliateRequest(method, "ok")
		return nil
	}

	metrics.RecordAffiliateRequest(method, string(KindRateLimited))
	last.Kind = KindRateLimited
	last.Attempts = c.cfg.MaxAttempts
	return last
}

// do sends one request. A non-nil throttled error means the attempt may be
// retried; a non-nil error is final.
func (c *Client) do(ctx context.Context, method string, params map[string]string) (json.RawMessage, *Error, *Error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, &Error{Kind: KindTransport, Method: method, Err: err}
	}

	form := url.Values{}
	for k, v := range params {
		if v != "" {
			form.Set(k, v)
		}
	}
	form.Set("method", method)
	form.Set("app_key", c.cfg.AppKey)
	form.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	form.Set("sign_method", "sha256")
	form.Set("format", "json")
	form.Set("v", "2.0")
	form.Set("sign", Sign(form, c.cfg.AppSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, nil, &Error{Kind: KindTransport, Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &Error{Kind: KindTransport, Method: method, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, nil, &Error{Kind: KindTransport, Method: method, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &Error{Kind: KindRateLimited, Method: method, Code: strconv.Itoa(resp.StatusCode), Message: strings.TrimSpace(string(body))}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, &Error{Kind: KindAPI, Method: method, Code: strconv.Itoa(resp.StatusCode), Message: strings.TrimSpace(string(body))}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, &Error{Kind: KindDecode, Method: method, Err: err}
	}

	if raw, ok := envelope["error_response"]; ok {
		var e errorResponse
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, nil, &Error{Kind: KindDecode, Method: method, Err: err}
		}
		apiErr := &Error{Kind: KindAPI, Method: method, Code: e.Code, Message: e.Msg}
		if isThrottleCode(e.Code) {
			apiErr.Kind = KindRateLimited
			return nil, apiErr, nil
		}
		return nil, nil, apiErr
	}

	key := strings.ReplaceAll(method, ".", "_") + "_response"
	raw, ok := envelope[key]
	if !ok {
		return nil, nil, &Error{Kind: KindDecode, Method: method, Err: fmt.Errorf("response has no %s object", key)}
	}
	var wrapper struct {
		RespResult respResult `json:"resp_result"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, nil, &Error{Kind: KindDecode, Method: method, Err: err}
	}
	rr := wrapper.RespResult
	if rr.RespCode != 0 && rr.RespCode != http.StatusOK {
		return nil, nil, &Error{Kind: KindAPI, Method: method, Code: strconv.Itoa(rr.RespCode), Message: rr.RespMsg}
	}
	return rr.Result, nil, nil
}

// SearchParams filters a partner product search.
type SearchParams struct {
	Keywords       string
	CategoryIDs    string
	PageNo         int
	PageSize       int
	Sort           string
	TargetCurrency string
	TargetLanguage string
	ShipToCountry  string
}

// SearchResult is one page of partner listings.
type SearchResult struct {
	PageNo     int
	TotalCount int
	Products   []domain.AffiliateProduct
}

type partnerProduct struct {
	ProductID           json.Number `json:"product_id"`
	Title               string      `json:"product_title"`
	DetailURL           string      `json:"product_detail_url"`
	MainImageURL        string      `json:"product_main_image_url"`
	PromotionLink       string      `json:"promotion_link"`
	ShopURL             string      `json:"shop_url"`
	TargetSalePrice     string      `json:"target_sale_price"`
	TargetOriginalPrice string      `json:"target_original_price"`
	TargetCurrency      string      `json:"target_sale_price_currency"`
	SalePrice           string      `json:"sale_price"`
	OriginalPrice       string      `json:"original_price"`
	SaleCurrency        string      `json:"sale_price_currency"`
	CommissionRate      string      `json:"commission_rate"`
	EvaluateRate        string      `json:"evaluate_rate"`
	Volume              int         `json:"lastest_volume"`
	CategoryID          json.Number `json:"first_level_category_id"`
}

type queryResult struct {
	CurrentPageNo    int `json:"current_page_no"`
	TotalRecordCount int `json:"total_record_count"`
	Products         struct {
		Product []partnerProduct `json:"product"`
	} `json:"products"`
}

// percent parses "7.5%" style values.
func percent(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func (p partnerProduct) toDomain(updated time.Time) domain.AffiliateProduct {
	out := domain.AffiliateProduct{
		PartnerProductID: p.ProductID.String(),
		Title:            p.Title,
		DetailURL:        p.DetailURL,
		ImageURL:         p.MainImageURL,
		PromotionLink:    p.PromotionLink,
		ShopURL:          p.ShopURL,
		Currency:         p.TargetCurrency,
		Volume:           p.Volume,
		CategoryID:       p.CategoryID.String(),
		UpdatedAt:        updated,
	}
	sale, orig := p.TargetSalePrice, p.TargetOriginalPrice
	if sale == "" {
		sale, orig, out.Currency = p.SalePrice, p.OriginalPrice, p.SaleCurrency
	}
	if v, err := strconv.ParseFloat(sale, 64); err == nil {
		out.SalePrice = v
	}
	if v, err := strconv.ParseFloat(orig, 64); err == nil && v > 0 {
		out.OriginalPrice = &v
	}
	if v, ok := percent(p.CommissionRate); ok {
		out.CommissionRate = v
	}
	if v, ok := percent(p.EvaluateRate); ok {
		out.PositiveRate = &v
	}
	return out
}

// Search runs one page of the partner product query.
func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	if p.PageNo <= 0 {
		p.PageNo = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 50
	}
	params := map[string]string{
		"keywords":        p.Keywords,
		"category_ids":    p.CategoryIDs,
		"page_no":         strconv.Itoa(p.PageNo),
		"page_size":       strconv.Itoa(p.PageSize),
		"sort":            p.Sort,
		"target_currency": p.TargetCurrency,
		"target_language": p.TargetLanguage,
		"ship_to_country": p.ShipToCountry,
		"tracking_id":     c.cfg.TrackingID,
	}

	var res queryResult
	if err := c.call(ctx, methodProductQuery, params, &res); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	out := &SearchResult{PageNo: res.CurrentPageNo, TotalCount: res.TotalRecordCount}
	for _, pp := range res.Products.Product {
		if pp.ProductID == "" {
			continue
		}
		out.Products = append(out.Products, pp.toDomain(now))
	}
	return out, nil
}

// PromotionLink is the partner's answer to a link generation request.
type PromotionLink struct {
	PromotionLink string
	SourceValue   string
}

type linkResult struct {
	PromotionLinks struct {
		PromotionLink []struct {
			PromotionLink string `json:"promotion_link"`
			SourceValue   string `json:"source_value"`
		} `json:"promotion_link"`
	} `json:"promotion_links"`
}

// ErrNoLink is wrapped when the partner accepts the request but returns no
// promotion link, usually because the product is not in the affiliate program.
var ErrNoLink = errors.New("partner returned no promotion link")

// GenerateLink mints a trackable link for productURL.
func (c *Client) GenerateLink(ctx context.Context, productURL string) (*PromotionLink, error) {
	params := map[string]string{
		"promotion_link_type": "0",
		"source_values":       productURL,
		"tracking_id":         c.cfg.TrackingID,
	}
	var res linkResult
	if err := c.call(ctx, methodLinkGenerate, params, &res); err != nil {
		return nil, err
	}
	for _, l := range res.PromotionLinks.PromotionLink {
		if l.PromotionLink != "" {
			return &PromotionLink{PromotionLink: l.PromotionLink, SourceValue: l.SourceValue}, nil
		}
	}
	return nil, &Error{Kind: KindAPI, Method: methodLinkGenerate, Message: ErrNoLink.Error(), Attempts: 1, Err: ErrNoLink}
}

// TrackingID returns the configured tracking id.
func (c *Client) TrackingID() string { return c.cfg.TrackingID }
