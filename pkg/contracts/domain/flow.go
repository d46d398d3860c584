package domain

import "strconv"

// TradeType identifies which side of the branch's book a flow row came from.
type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

// DailyRecord is one counterparty flow row for a (branch, date, trade type).
// Quantities are never null: integer when the source cell parses as one,
// float otherwise, zero on total parse failure.
type DailyRecord struct {
	Date                   string    `json:"date" csv:"date"`
	TradeType              TradeType `json:"trade_type" csv:"trade_type"`
	BranchSystemKey        string    `json:"branch_system_key" csv:"branch_system_key"`
	BranchBrokerCode       string    `json:"branch_broker_code" csv:"branch_broker_code"`
	BranchCode             string    `json:"branch_code" csv:"branch_code"`
	BranchDisplayName      string    `json:"branch_display_name" csv:"branch_display_name"`
	CounterpartyBrokerCode string    `json:"counterparty_broker_code" csv:"counterparty_broker_code"`
	CounterpartyBrokerName string    `json:"counterparty_broker_name" csv:"counterparty_broker_name"`
	BuyQty                 float64   `json:"buy_qty" csv:"buy_qty"`
	SellQty                float64   `json:"sell_qty" csv:"sell_qty"`
	NetQty                 float64   `json:"net_qty" csv:"net_qty"`
}

// FlowColumns is the fixed column order shared by daily files and the merged
// history table.
var FlowColumns = []string{
	"date",
	"trade_type",
	"branch_system_key",
	"branch_broker_code",
	"branch_code",
	"branch_display_name",
	"counterparty_broker_code",
	"counterparty_broker_name",
	"buy_qty",
	"sell_qty",
	"net_qty",
}

// Key returns the dedup key of the record: one row survives per
// (date, trade_type, counterparty_broker_code) after reconciliation.
func (r DailyRecord) Key() string {
	return r.Date + "|" + string(r.TradeType) + "|" + r.CounterpartyBrokerCode
}

// CSVRow renders the record in FlowColumns order.
func (r DailyRecord) CSVRow() []string {
	return []string{
		r.Date,
		string(r.TradeType),
		r.BranchSystemKey,
		r.BranchBrokerCode,
		r.BranchCode,
		r.BranchDisplayName,
		r.CounterpartyBrokerCode,
		r.CounterpartyBrokerName,
		FormatQty(r.BuyQty),
		FormatQty(r.SellQty),
		FormatQty(r.NetQty),
	}
}

// FormatQty renders a quantity without a trailing ".0" when it is integral,
// so integer-valued cells round-trip byte-identical through CSV.
func FormatQty(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
