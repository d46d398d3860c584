package scraper

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

func TestBuildURL(t *testing.T) {
	branch := domain.BranchEntry{
		SystemKey: "9800-fubon-taipei",
		URLParamA: "9800",
		URLParamB: "0039004100390050",
	}
	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	raw, err := BuildURL(branch, date)
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "fubon-ebrokerdj.fbs.com.tw", parsed.Host)
	assert.Equal(t, "/z/zg/zgb/zgb0.djhtm", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "9800", q.Get("a"))
	// Leading zeros pass through untouched.
	assert.Equal(t, "0039004100390050", q.Get("b"))
	assert.Equal(t, "E", q.Get("c"))
	// The range runs from the previous calendar day, without zero padding.
	assert.Equal(t, "2026-8-2", q.Get("e"))
	assert.Equal(t, "2026-8-3", q.Get("f"))
}

func TestBuildURLDateCrossesMonthBoundary(t *testing.T) {
	branch := domain.BranchEntry{URLParamA: "a", URLParamB: "b"}
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	raw, err := BuildURL(branch, date)
	require.NoError(t, err)

	q, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "2026-2-28", q.Query().Get("e"))
}

func TestBuildURLMissingParams(t *testing.T) {
	tests := []struct {
		name   string
		branch domain.BranchEntry
	}{
		{name: "missing a", branch: domain.BranchEntry{SystemKey: "x", URLParamB: "b"}},
		{name: "missing b", branch: domain.BranchEntry{SystemKey: "x", URLParamA: "a"}},
		{name: "missing both", branch: domain.BranchEntry{SystemKey: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildURL(tt.branch, time.Now())
			assert.ErrorIs(t, err, ErrMissingParams)
		})
	}
}
