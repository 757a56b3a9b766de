package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" Wadiz ")
	require.NoError(t, err)
	assert.Equal(t, PlatformWadiz, p)

	_, err = ParsePlatform("etsy")
	assert.Error(t, err)
}

func TestParseCrawlMode(t *testing.T) {
	m, err := ParseCrawlMode("DIRECT-URL")
	require.NoError(t, err)
	assert.Equal(t, ModeDirectURL, m)

	m, err = ParseCrawlMode("closing")
	require.NoError(t, err)
	assert.Equal(t, ModeClosing, m)

	_, err = ParseCrawlMode("random")
	assert.Error(t, err)
}

func TestIdentityKeyString(t *testing.T) {
	k := Product{SourcePlatform: PlatformEbay, IdentityKey: "12345"}.Identity()
	assert.Equal(t, "ebay:12345", k.String())
}
