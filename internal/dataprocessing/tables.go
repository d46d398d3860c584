// Package dataprocessing turns fetched HTML into flow records. Extraction is
// positional: the upstream page embeds the buy-side table at index 13 and the
// sell-side table at index 14 of the full table list. That is a structural
// contract of the source markup, not a configurable choice.
package dataprocessing

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

// Table is one HTML table as rows of trimmed cell text.
type Table [][]string

const (
	// BuyTableIndex and SellTableIndex locate the flow tables in the page.
	BuyTableIndex  = 13
	SellTableIndex = 14

	// headerRows is how many leading rows of each flow table are headers.
	headerRows = 2

	// flowCellCount is the cell count of a data row: counterparty name,
	// buy quantity, sell quantity, net quantity.
	flowCellCount = 4
)

// ExtractTables parses every <table> in the document into cell text.
func ExtractTables(html string) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	var tables []Table
	doc.Find("table").Each(func(_ int, sel *goquery.Selection) {
		var table Table
		sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var row []string
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, strings.TrimSpace(cell.Text()))
			})
			if len(row) > 0 {
				table = append(table, row)
			}
		})
		tables = append(tables, table)
	})
	return tables, nil
}

// ParseFlows builds the day's records from the positional buy/sell tables.
// The caller has already verified the minimum table count.
func ParseFlows(tables []Table, branch domain.BranchEntry, isoDate string, logger *slog.Logger) ([]domain.DailyRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(tables) <= SellTableIndex {
		return nil, fmt.Errorf("page has %d tables, need at least %d", len(tables), SellTableIndex+1)
	}

	var records []domain.DailyRecord
	records = append(records, parseFlowTable(tables[BuyTableIndex], branch, isoDate, domain.TradeTypeBuy, logger)...)
	records = append(records, parseFlowTable(tables[SellTableIndex], branch, isoDate, domain.TradeTypeSell, logger)...)
	return records, nil
}

func parseFlowTable(table Table, branch domain.BranchEntry, isoDate string, tradeType domain.TradeType, logger *slog.Logger) []domain.DailyRecord {
	var records []domain.DailyRecord
	for i, row := range table {
		if i < headerRows {
			continue
		}
		if len(row) != flowCellCount {
			continue
		}

		code, name := ResolveCounterparty(row[0])
		records = append(records, domain.DailyRecord{
			Date:                   isoDate,
			TradeType:              tradeType,
			BranchSystemKey:        branch.SystemKey,
			BranchBrokerCode:       branch.BrokerCode,
			BranchCode:             branch.BranchCode,
			BranchDisplayName:      branch.DisplayName,
			CounterpartyBrokerCode: code,
			CounterpartyBrokerName: name,
			BuyQty:                 parseQty(row[1], logger),
			SellQty:                parseQty(row[2], logger),
			NetQty:                 parseQty(row[3], logger),
		})
	}
	return records
}

// parseQty parses a quantity cell, preferring integer, falling back to
// float, then to zero. Each fallback is logged so bad cells stay visible.
func parseQty(cell string, logger *slog.Logger) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		logger.Debug("quantity cell parsed as float", slog.String("cell", cell))
		return f
	}
	logger.Debug("unparseable quantity cell, using zero", slog.String("cell", cell))
	return 0
}
