// Package identity decides whether a crawl result is a new product or an
// update of a stored one, and assigns globally unique slugs.
package identity

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingParams are dropped exactly; trackingPrefixes drop every key they start.
var (
	trackingParams = map[string]bool{
		"gclid": true, "fbclid": true, "spm": true, "scm": true, "pvid": true,
		"_ga": true, "ref": true, "ref_": true, "qid": true, "sr": true,
		"srsltid": true, "crid": true, "sprefix": true, "keywords": true,
		"th": true, "psc": true, "hash": true, "_trksid": true, "_trkparms": true,
		"gatewayadapt": true, "mc_cid": true, "mc_eid": true,
	}
	trackingPrefixes = []string{"utm_", "algo_", "aff_", "pf_rd_", "pd_rd_"}
)

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	if trackingParams[k] {
		return true
	}
	for _, p := range trackingPrefixes {
		if strings.HasPrefix(k, p) {
			return true
		}
	}
	return false
}

// NormalizeURL reduces raw to a stable form: lower-cased scheme and host
// without "www.", no userinfo or fragment, tracking parameters removed, the
// remaining query sorted and no trailing slash.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for k := range q {
		if isTrackingParam(k) {
			q.Del(k)
		}
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := q[k]
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	u.RawQuery = strings.Join(parts, "&")
	u.ForceQuery = false

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String(), nil
}
