package browser

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
)

func TestNewRodPage_EvalIsBoundedByPageTimeout(t *testing.T) {
	page := (&rod.Page{}).Context(context.Background())

	p := newRodPage(page, "https://www.ebay.com/itm/1", 5*time.Second)
	assert.Equal(t, 5*time.Second, p.evalTimeout)
	assert.Equal(t, "https://www.ebay.com/itm/1", p.requested)

	p = newRodPage(page, "https://www.ebay.com/itm/1", 0)
	assert.Equal(t, 30*time.Second, p.evalTimeout, "a zero timeout must not leave script evaluation unbounded")
}
