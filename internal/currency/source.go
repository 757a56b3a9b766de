package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSource reads a JSON rate table from an HTTP endpoint. Both
// {"base": "USD", "rates": {...}} and {"base_code": "USD", "rates": {...}}
// payloads are accepted.
type HTTPSource struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSource creates a rate source for endpoint.
func NewHTTPSource(endpoint string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type ratesPayload struct {
	Base     string             `json:"base"`
	BaseCode string             `json:"base_code"`
	Rates    map[string]float64 `json:"rates"`
}

// FetchRates implements RateSource.
func (s *HTTPSource) FetchRates(ctx context.Context) (*Rates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read rates body: %w", err)
	}

	var p ratesPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode rates: %w", err)
	}
	base := p.Base
	if base == "" {
		base = p.BaseCode
	}
	if base == "" || len(p.Rates) == 0 {
		return nil, errors.New("rates payload is missing base or rates")
	}

	values := make(map[string]float64, len(p.Rates))
	for code, v := range p.Rates {
		values[strings.ToUpper(code)] = v
	}
	return &Rates{
		Base:   strings.ToUpper(base),
		Values: values,
	}, nil
}
