package scraper

import (
	"fmt"
	"net/url"
	"time"

	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

// baseURL is the branch trade-flow page. The endpoint needs a two-point date
// range (previous calendar day through target day) to emit the target day's
// table at all.
const baseURL = "https://fubon-ebrokerdj.fbs.com.tw/z/zg/zgb/zgb0.djhtm"

// BuildURL assembles the source query for one (branch, date) pair. The
// branch parameters are opaque strings and pass through untouched.
func BuildURL(branch domain.BranchEntry, date time.Time) (string, error) {
	if branch.URLParamA == "" || branch.URLParamB == "" {
		return "", fmt.Errorf("branch %s: %w", branch.SystemKey, ErrMissingParams)
	}

	prev := date.AddDate(0, 0, -1)
	q := url.Values{}
	q.Set("a", branch.URLParamA)
	q.Set("b", branch.URLParamB)
	q.Set("c", "E")
	q.Set("e", prev.Format("2006-1-2"))
	q.Set("f", date.Format("2006-1-2"))

	return baseURL + "?" + q.Encode(), nil
}
