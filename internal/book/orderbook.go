package book

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AcceptResult is the synchronous reply to a submission: the assigned
// order id, the terminal-or-resting status, and every trade the order
// produced, in match order.
type AcceptResult struct {
	OrderID    string
	Status     Status
	Executions []Trade
	Remaining  decimal.Decimal

	// DepthChanged reports whether any price level changed, so the
	// caller knows to publish market data.
	DepthChanged bool
}

// Book is the order book for a single symbol. It owns both side books
// and the order-id index and is the sole mutator during matching.
//
// Book does no locking of its own: the engine facade serializes all
// calls per symbol and holds the mutation right for the duration of a
// submit or cancel. Keeping the discipline out of this package means
// matching never has to reason about concurrent mutation.
type Book struct {
	symbol string
	bids   *sideBook
	asks   *sideBook

	// index maps live order ids to their list node for O(1) cancel.
	index map[string]*orderNode

	seq      uint64 // order sequence, FIFO tie-break
	tradeSeq uint64 // trade ids, monotonic per symbol

	// maxResting caps resting orders across both sides. Zero means
	// unbounded.
	maxResting int
}

func New(symbol string, maxResting int) *Book {
	return &Book{
		symbol:     symbol,
		bids:       newSideBook(Buy),
		asks:       newSideBook(Sell),
		index:      make(map[string]*orderNode),
		maxResting: maxResting,
	}
}

func (b *Book) Symbol() string { return b.symbol }

func (b *Book) contra(side Side) *sideBook {
	if side == Buy {
		return b.asks
	}
	return b.bids
}

func (b *Book) same(side Side) *sideBook {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// Submit runs an incoming order through its type's execution policy.
// The order id and sequence are assigned here, under the caller-held
// mutation right, so arrival order decides priority.
func (b *Book) Submit(side Side, typ OrderType, price, qty decimal.Decimal) (AcceptResult, error) {
	order := &Order{
		ID:         uuid.New().String(),
		Symbol:     b.symbol,
		Side:       side,
		Type:       typ,
		LimitPrice: price,
		Quantity:   qty,
		Total:      qty,
		Timestamp:  time.Now(),
	}

	switch typ {
	case MarketOrder:
		// A market order against an empty contra side has nothing to
		// execute at any price; refuse it outright.
		if b.contra(side).volume.Sign() == 0 {
			return AcceptResult{OrderID: order.ID, Status: Rejected, Remaining: qty}, ErrNotEnoughLiquidity
		}
	case FOKOrder:
		// Pre-scan the crossing contra liquidity without touching the
		// book. If the full quantity cannot execute, nothing happens:
		// no trades, no depth change, no resting order.
		if b.crossingVolume(side, price, qty).LessThan(qty) {
			return AcceptResult{OrderID: order.ID, Status: Cancelled, Remaining: qty}, nil
		}
	}

	b.seq++
	order.Sequence = b.seq

	trades := b.match(order)

	result := AcceptResult{
		OrderID:      order.ID,
		Executions:   trades,
		Remaining:    order.Quantity,
		DepthChanged: len(trades) > 0,
	}

	switch {
	case order.Quantity.Sign() == 0:
		result.Status = Filled
	case typ == LimitOrder:
		// Residual rests at the limit price, subject to the cap.
		if b.maxResting > 0 && len(b.index) >= b.maxResting {
			result.Status = Cancelled
			if len(trades) > 0 {
				result.Status = PartiallyFilled
			}
			return result, ErrBookFull
		}
		b.index[order.ID] = b.same(side).insert(order)
		result.DepthChanged = true
		result.Status = Accepted
		if len(trades) > 0 {
			result.Status = PartiallyFilled
		}
	default:
		// Market and IOC residuals are cancelled, never rested.
		result.Status = Cancelled
		if len(trades) > 0 {
			result.Status = PartiallyFilled
		}
	}
	return result, nil
}

// match consumes the contra side in price-time priority while the
// taker still crosses: best level first, FIFO by sequence within a
// level. Trades print at the maker's price. Fully filled makers leave
// the book and the index; a partially filled maker keeps its place at
// the head of its queue.
func (b *Book) match(taker *Order) []Trade {
	contra := b.contra(taker.Side)

	var trades []Trade
	for taker.Quantity.Sign() > 0 {
		level, ok := contra.best()
		if !ok || !crosses(taker, level.price) {
			break
		}

		for taker.Quantity.Sign() > 0 && !level.empty() {
			node := level.head
			maker := node.order

			matchQty := decimal.Min(taker.Quantity, maker.Quantity)
			taker.Quantity = taker.Quantity.Sub(matchQty)
			maker.Quantity = maker.Quantity.Sub(matchQty)
			contra.reduce(level, matchQty)

			b.tradeSeq++
			trades = append(trades, Trade{
				ID:            b.tradeSeq,
				Symbol:        b.symbol,
				Price:         level.price,
				Quantity:      matchQty,
				AggressorSide: taker.Side.String(),
				MakerOrderID:  maker.ID,
				TakerOrderID:  taker.ID,
				Timestamp:     time.Now(),
			})

			if maker.Quantity.Sign() == 0 {
				// remove drops the level too once its queue empties,
				// so the outer loop re-fetches a fresh best.
				contra.remove(node)
				delete(b.index, maker.ID)
			}
		}
	}
	return trades
}

// crosses reports whether the taker is willing to trade at a contra
// resting price. Market orders cross anything.
func crosses(taker *Order, restPrice decimal.Decimal) bool {
	if taker.Type == MarketOrder {
		return true
	}
	if taker.Side == Buy {
		return taker.LimitPrice.GreaterThanOrEqual(restPrice)
	}
	return taker.LimitPrice.LessThanOrEqual(restPrice)
}

// crossingVolume sums contra liquidity at prices that cross the limit,
// stopping early once need is covered. Read-only: this is the FOK
// pre-scan, and the subsequent execution must produce exactly the
// quantity verified here.
func (b *Book) crossingVolume(side Side, limit, need decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	b.contra(side).levels.Scan(func(level *priceLevel) bool {
		if side == Buy && level.price.GreaterThan(limit) {
			return false
		}
		if side == Sell && level.price.LessThan(limit) {
			return false
		}
		total = total.Add(level.volume)
		return total.LessThan(need)
	})
	return total
}

// Cancel removes a resting order. Unknown or already-terminal ids
// return ErrOrderNotFound and leave the book untouched, so cancelling
// twice is harmless.
func (b *Book) Cancel(orderID string) (decimal.Decimal, error) {
	node, ok := b.index[orderID]
	if !ok {
		return decimal.Zero, ErrOrderNotFound
	}
	remaining := node.order.Quantity
	b.same(node.order.Side).remove(node)
	delete(b.index, orderID)
	return remaining, nil
}

// BestBid returns the top-of-book bid, if any.
func (b *Book) BestBid() (decimal.Decimal, bool) { return b.bids.bestPrice() }

// BestAsk returns the top-of-book ask, if any.
func (b *Book) BestAsk() (decimal.Decimal, bool) { return b.asks.bestPrice() }

// Snapshot aggregates the top n levels per side, best-first.
func (b *Book) Snapshot(n int) Snapshot {
	snap := Snapshot{
		Symbol: b.symbol,
		Bids:   b.bids.depth(n),
		Asks:   b.asks.depth(n),
	}
	if bid, ok := b.BestBid(); ok {
		snap.BestBid = &bid
	}
	if ask, ok := b.BestAsk(); ok {
		snap.BestAsk = &ask
	}
	return snap
}

// RestingVolume reports the summed remaining quantity on one side.
// Used for liquidity accounting and conservation checks.
func (b *Book) RestingVolume(side Side) decimal.Decimal {
	return b.same(side).volume
}

// RestingOrders reports how many orders currently rest in the book.
func (b *Book) RestingOrders() int { return len(b.index) }
