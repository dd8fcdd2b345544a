package book

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

type priceLevels = btree.BTreeG[*priceLevel]

// sideBook holds the sorted price levels for one side of the book. The
// btree comparator is chosen per side so that Min() is always the best
// price: highest first for bids, lowest first for asks. volume and
// orders track the side's total resting liquidity for O(1) liquidity
// checks and conservation accounting.
type sideBook struct {
	side   Side
	levels *priceLevels
	volume decimal.Decimal
	orders int
}

func newSideBook(side Side) *sideBook {
	var levels *priceLevels
	switch side {
	case Buy:
		// Sorted greatest first.
		levels = btree.NewBTreeG(func(a, b *priceLevel) bool {
			return a.price.GreaterThan(b.price)
		})
	case Sell:
		// Sorted least first.
		levels = btree.NewBTreeG(func(a, b *priceLevel) bool {
			return a.price.LessThan(b.price)
		})
	}
	return &sideBook{
		side:   side,
		levels: levels,
		volume: decimal.Zero,
	}
}

// best returns the level at the top of this side, if any. Min is the
// best on both sides because the comparators sort best-first.
func (s *sideBook) best() (*priceLevel, bool) {
	return s.levels.Min()
}

// bestPrice returns the top-of-book price for this side.
func (s *sideBook) bestPrice() (decimal.Decimal, bool) {
	level, ok := s.best()
	if !ok {
		return decimal.Zero, false
	}
	return level.price, true
}

// insert finds or creates the level for the order's limit price and
// appends the order at the tail of its FIFO queue.
func (s *sideBook) insert(o *Order) *orderNode {
	// The comparator only looks at prices, so a bare level works as
	// the search key.
	level, ok := s.levels.Get(&priceLevel{price: o.LimitPrice})
	if !ok {
		level = newPriceLevel(o.LimitPrice)
		s.levels.Set(level)
	}
	node := level.pushBack(o)
	s.volume = s.volume.Add(o.Quantity)
	s.orders++
	return node
}

// remove unlinks a resting order and drops its level if that left the
// queue empty. The removed order's remaining quantity leaves the side's
// volume counter.
func (s *sideBook) remove(n *orderNode) {
	level := n.level
	s.volume = s.volume.Sub(n.order.Quantity)
	s.orders--
	level.unlink(n)
	if level.empty() {
		s.levels.Delete(level)
	}
}

// reduce accounts a partial fill of qty against a resting order.
func (s *sideBook) reduce(level *priceLevel, qty decimal.Decimal) {
	level.reduce(qty)
	s.volume = s.volume.Sub(qty)
}

// depth walks the first n levels in best-first order and returns their
// aggregated quantities.
func (s *sideBook) depth(n int) []Level {
	out := make([]Level, 0, n)
	s.levels.Scan(func(level *priceLevel) bool {
		out = append(out, Level{Price: level.price, Quantity: level.volume})
		return len(out) < n
	})
	return out
}
