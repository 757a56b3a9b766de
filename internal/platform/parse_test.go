package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in       string
		amount   float64
		currency string
	}{
		{"US $12.34", 12.34, "USD"},
		{"$10.00 - $15.00", 10, "USD"},
		{"₩12,900", 12900, "KRW"},
		{"29,900원", 29900, "KRW"},
		{"€1.234,56", 1234.56, "EUR"},
		{"12.99 EUR", 12.99, "EUR"},
		{"CA $5.99", 5.99, "CAD"},
		{"£1,299.00", 1299, "GBP"},
		{"19.95", 19.95, ""},
		{"12.99 15.99", 12.99, ""},
		{"12 900원", 12900, "KRW"},
		{"1 234 567 KRW", 1234567, "KRW"},
		{"12 34", 12, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			amount, cur, ok := parsePrice(tt.in)
			require.True(t, ok)
			assert.InDelta(t, tt.amount, amount, 0.0001)
			assert.Equal(t, tt.currency, cur)
		})
	}

	for _, in := range []string{"", "   ", "Sold out"} {
		_, _, ok := parsePrice(in)
		assert.False(t, ok, in)
	}
}

func TestParseCount(t *testing.T) {
	assert.Equal(t, 1234, parseCount("1,234 ratings"))
	assert.Equal(t, 2500, parseCount("2.5K sold"))
	assert.Equal(t, 3000, parseCount("3천명 참여"))
	assert.Equal(t, 12000, parseCount("1.2만"))
	assert.Equal(t, 5, parseCount("5 more"))
	assert.Equal(t, 0, parseCount("no reviews yet"))
}

func TestNormalizeRating(t *testing.T) {
	assert.Equal(t, 4.0, *NormalizeRating(8, 10))
	assert.Equal(t, 4.5, *NormalizeRating(90, 100))
	assert.Equal(t, 4.57, *NormalizeRating(4.567, 5))
	assert.Equal(t, 5.0, *NormalizeRating(7, 5))
	assert.Equal(t, 0.0, *NormalizeRating(-1, 5))
	assert.Nil(t, NormalizeRating(3, 0))
}

func TestAbsURL(t *testing.T) {
	base := "https://www.example.com/item/1.html"
	assert.Equal(t, "https://cdn.example.com/i.jpg", absURL(base, "//cdn.example.com/i.jpg"))
	assert.Equal(t, "https://www.example.com/img/1.jpg", absURL(base, "/img/1.jpg"))
	assert.Equal(t, "https://other.example.com/a.png", absURL(base, "https://other.example.com/a.png"))
	assert.Empty(t, absURL(base, "data:image/png;base64,AAAA"))
	assert.Empty(t, absURL(base, "javascript:void(0)"))
	assert.Empty(t, absURL(base, "  "))

	assert.Equal(t,
		[]string{"https://cdn.example.com/a.jpg", "https://www.example.com/b.jpg"},
		absURLs(base, []string{"//cdn.example.com/a.jpg", "", "/b.jpg", "https://cdn.example.com/a.jpg"}))
}

func TestUniqueTags(t *testing.T) {
	assert.Equal(t, []string{"Home", "Audio"}, uniqueTags(" Home ", "", "Audio", "home"))
	assert.Nil(t, uniqueTags("", " "))
}
