package book

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID         string          // Engine-assigned uuid
	Symbol     string          // Trading pair, e.g. BTC-USDT
	Side       Side            // Order side
	Type       OrderType       // Execution policy
	LimitPrice decimal.Decimal // Zero for market orders
	Quantity   decimal.Decimal // Remaining quantity
	Total      decimal.Decimal // Original quantity requested
	Sequence   uint64          // FIFO tie-break, assigned at acceptance
	Timestamp  time.Time       // Time of acceptance, informational only
}

// Filled reports how much of the order has executed so far.
func (o *Order) Filled() decimal.Decimal {
	return o.Total.Sub(o.Quantity)
}

// Trade is one execution between a resting maker and an incoming taker.
// Immutable once emitted; the price is always the maker's limit price.
type Trade struct {
	ID            uint64          `json:"trade_id"`
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	AggressorSide string          `json:"aggressor_side"`
	MakerOrderID  string          `json:"maker_order_id"`
	TakerOrderID  string          `json:"taker_order_id"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Level is one aggregated depth row: a price and the summed remaining
// quantity resting at it.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Snapshot is a point-in-time view of the book: best prices plus top-N
// depth per side, bids descending and asks ascending.
type Snapshot struct {
	Symbol  string
	BestBid *decimal.Decimal
	BestAsk *decimal.Decimal
	Bids    []Level
	Asks    []Level
}
