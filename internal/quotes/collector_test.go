package quotes

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectMonthIsolatesFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("stockNo") == "9999" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(stockDayJSON))
	})
	store := newTestStore(t)
	collector := NewCollector(client, store, nil)

	month := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := collector.CollectMonth(context.Background(), []string{"2330", "9999"}, month)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Codes)
	assert.Equal(t, []string{"9999"}, result.Failed)
	assert.Equal(t, 2, result.RowsAdded)

	history, err := store.ReadQuotes("2330")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCollectMonthCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(stockDayJSON))
	})
	collector := NewCollector(client, newTestStore(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collector.CollectMonth(ctx, []string{"2330"}, time.Now())
	require.Error(t, err)
}

func TestCollectIndices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"stat": "OK",
			"fields": ["指數","收盤指數","漲跌","漲跌點數","漲跌百分比"],
			"data": [["發行量加權股價指數","18,000.50","+","120.30","0.67"]]
		}`))
	})
	store := newTestStore(t)
	collector := NewCollector(client, store, nil)

	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	require.NoError(t, collector.CollectIndices(context.Background(), date))

	values, err := store.readIndices("發行量加權股價指數")
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "2026-08-28", values[0].Date)
}
