package engine

import (
	"github.com/shopspring/decimal"

	"kestrel/internal/book"
)

// MarketDataKind discriminates the two market-data event shapes.
type MarketDataKind int

const (
	// BBOUpdate carries a change to a side's best price.
	BBOUpdate MarketDataKind = iota
	// DepthUpdate carries the top-N aggregated depth of both sides.
	DepthUpdate
)

// MarketData is one event on the market-data topic: either a BBO
// update or a depth update, per Kind.
type MarketData struct {
	Kind   MarketDataKind
	Symbol string

	// BBO fields, set when Kind is BBOUpdate. Nil means that side of
	// the book is empty.
	BestBid *decimal.Decimal
	BestAsk *decimal.Decimal

	// Depth fields, set when Kind is DepthUpdate. Bids descend, asks
	// ascend, both truncated to the configured depth.
	Bids []book.Level
	Asks []book.Level
}
