package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestBook() *Book {
	return New("BTC-USDT", 0)
}

func limit(t *testing.T, b *Book, side Side, price, qty string) AcceptResult {
	t.Helper()
	res, err := b.Submit(side, LimitOrder, d(price), d(qty))
	require.NoError(t, err)
	return res
}

// tradeIs checks one execution's price, quantity and counterparties.
func tradeIs(t *testing.T, tr Trade, price, qty string, maker, taker string) {
	t.Helper()
	assert.True(t, tr.Price.Equal(d(price)), "price %s != %s", tr.Price, price)
	assert.True(t, tr.Quantity.Equal(d(qty)), "qty %s != %s", tr.Quantity, qty)
	assert.Equal(t, maker, tr.MakerOrderID)
	assert.Equal(t, taker, tr.TakerOrderID)
}

func bestPrices(b *Book) (bid, ask string) {
	if p, ok := b.BestBid(); ok {
		bid = p.String()
	}
	if p, ok := b.BestAsk(); ok {
		ask = p.String()
	}
	return bid, ask
}

// --- Scenarios --------------------------------------------------------------

func TestSimpleLimitCross(t *testing.T) {
	b := newTestBook()

	sell := limit(t, b, Sell, "51000", "1.0")
	assert.Equal(t, Accepted, sell.Status)
	assert.Empty(t, sell.Executions)
	_, ask := bestPrices(b)
	assert.Equal(t, "51000", ask)

	buy := limit(t, b, Buy, "51000", "1.0")
	assert.Equal(t, Filled, buy.Status)
	require.Len(t, buy.Executions, 1)
	tradeIs(t, buy.Executions[0], "51000", "1", sell.OrderID, buy.OrderID)
	assert.Equal(t, "buy", buy.Executions[0].AggressorSide)

	bid, ask := bestPrices(b)
	assert.Empty(t, bid)
	assert.Empty(t, ask)
	assert.Zero(t, b.RestingOrders())
}

func TestPriceTimePriority(t *testing.T) {
	b := newTestBook()

	a := limit(t, b, Buy, "50000", "1.0")
	bRes := limit(t, b, Buy, "50000", "1.0")

	sell := limit(t, b, Sell, "50000", "1.0")
	assert.Equal(t, Filled, sell.Status)
	require.Len(t, sell.Executions, 1)
	// FIFO: the earlier order at the level matches first.
	tradeIs(t, sell.Executions[0], "50000", "1", a.OrderID, sell.OrderID)

	// B still rests untouched.
	assert.Equal(t, 1, b.RestingOrders())
	remaining, err := b.Cancel(bRes.OrderID)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(d("1.0")))
}

func TestPricePriorityAcrossLevels(t *testing.T) {
	b := newTestBook()

	worse := limit(t, b, Buy, "49000", "1.0")
	better := limit(t, b, Buy, "50000", "1.0")

	sell := limit(t, b, Sell, "48000", "2.0")
	require.Len(t, sell.Executions, 2)
	// Best bid first, and each trade prints at the maker's price.
	tradeIs(t, sell.Executions[0], "50000", "1", better.OrderID, sell.OrderID)
	tradeIs(t, sell.Executions[1], "49000", "1", worse.OrderID, sell.OrderID)
	assert.Equal(t, Filled, sell.Status)
}

func TestPartialFillRests(t *testing.T) {
	b := newTestBook()

	sell := limit(t, b, Sell, "51000", "2.0")
	buy := limit(t, b, Buy, "51000", "0.5")

	assert.Equal(t, Filled, buy.Status)
	require.Len(t, buy.Executions, 1)
	tradeIs(t, buy.Executions[0], "51000", "0.5", sell.OrderID, buy.OrderID)

	// The sell rests on with the residual.
	assert.Equal(t, 1, b.RestingOrders())
	assert.True(t, b.RestingVolume(Sell).Equal(d("1.5")))
}

func TestMarketSweep(t *testing.T) {
	b := newTestBook()

	a1 := limit(t, b, Sell, "51000", "0.3")
	a2 := limit(t, b, Sell, "51100", "0.4")
	a3 := limit(t, b, Sell, "51200", "0.5")

	res, err := b.Submit(Buy, MarketOrder, decimal.Zero, d("1.0"))
	require.NoError(t, err)
	assert.Equal(t, Filled, res.Status)
	require.Len(t, res.Executions, 3)
	tradeIs(t, res.Executions[0], "51000", "0.3", a1.OrderID, res.OrderID)
	tradeIs(t, res.Executions[1], "51100", "0.4", a2.OrderID, res.OrderID)
	tradeIs(t, res.Executions[2], "51200", "0.3", a3.OrderID, res.OrderID)

	// A3 remains with 0.2.
	assert.Equal(t, 1, b.RestingOrders())
	assert.True(t, b.RestingVolume(Sell).Equal(d("0.2")))
}

func TestMarketPartialCancelsResidual(t *testing.T) {
	b := newTestBook()
	limit(t, b, Sell, "51000", "0.3")

	res, err := b.Submit(Buy, MarketOrder, decimal.Zero, d("1.0"))
	require.NoError(t, err)
	assert.Equal(t, PartiallyFilled, res.Status)
	assert.True(t, res.Remaining.Equal(d("0.7")))

	// The residual never rests.
	assert.Zero(t, b.RestingOrders())
	bid, _ := bestPrices(b)
	assert.Empty(t, bid)
}

func TestMarketNoLiquidityRejected(t *testing.T) {
	b := newTestBook()

	res, err := b.Submit(Buy, MarketOrder, decimal.Zero, d("1.0"))
	assert.ErrorIs(t, err, ErrNotEnoughLiquidity)
	assert.Equal(t, Rejected, res.Status)
	assert.Empty(t, res.Executions)
	assert.Zero(t, b.RestingOrders())
}

func TestIOCPartial(t *testing.T) {
	b := newTestBook()
	sell := limit(t, b, Sell, "51000", "0.3")

	res, err := b.Submit(Buy, IOCOrder, d("51000"), d("1.0"))
	require.NoError(t, err)
	assert.Equal(t, PartiallyFilled, res.Status)
	require.Len(t, res.Executions, 1)
	tradeIs(t, res.Executions[0], "51000", "0.3", sell.OrderID, res.OrderID)
	assert.True(t, res.Remaining.Equal(d("0.7")))
	assert.Zero(t, b.RestingOrders())
}

func TestIOCNoCrossCancelled(t *testing.T) {
	b := newTestBook()
	limit(t, b, Sell, "51000", "0.3")

	res, err := b.Submit(Buy, IOCOrder, d("50000"), d("1.0"))
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Status)
	assert.Empty(t, res.Executions)
	assert.Equal(t, 1, b.RestingOrders())
}

func TestFOKRejectLeavesBookUnchanged(t *testing.T) {
	b := newTestBook()
	limit(t, b, Sell, "51000", "0.3")
	limit(t, b, Sell, "51100", "0.4")

	before := b.Snapshot(10)

	res, err := b.Submit(Buy, FOKOrder, d("51100"), d("1.0"))
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Status)
	assert.Empty(t, res.Executions)

	// Zero side effects: the book is identical to its pre-call state.
	assert.Equal(t, before, b.Snapshot(10))
	assert.True(t, b.RestingVolume(Sell).Equal(d("0.7")))
}

func TestFOKFillsExactly(t *testing.T) {
	b := newTestBook()
	a1 := limit(t, b, Sell, "51000", "0.3")
	a2 := limit(t, b, Sell, "51100", "0.4")

	res, err := b.Submit(Buy, FOKOrder, d("51100"), d("0.7"))
	require.NoError(t, err)
	assert.Equal(t, Filled, res.Status)
	require.Len(t, res.Executions, 2)
	tradeIs(t, res.Executions[0], "51000", "0.3", a1.OrderID, res.OrderID)
	tradeIs(t, res.Executions[1], "51100", "0.4", a2.OrderID, res.OrderID)

	_, ask := bestPrices(b)
	assert.Empty(t, ask)
}

func TestFOKIgnoresNonCrossingLiquidity(t *testing.T) {
	b := newTestBook()
	limit(t, b, Sell, "51000", "0.3")
	limit(t, b, Sell, "52000", "5.0")

	// Plenty of liquidity in total, but not at crossing prices.
	res, err := b.Submit(Buy, FOKOrder, d("51100"), d("1.0"))
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Status)
	assert.Empty(t, res.Executions)
}

// --- Laws & invariants ------------------------------------------------------

func TestSubmitCancelRoundTrip(t *testing.T) {
	b := newTestBook()
	limit(t, b, Buy, "50000", "1.0")
	limit(t, b, Sell, "51000", "1.0")

	before := b.Snapshot(10)

	res := limit(t, b, Buy, "50500", "0.4")
	bid, _ := bestPrices(b)
	assert.Equal(t, "50500", bid)

	remaining, err := b.Cancel(res.OrderID)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(d("0.4")))

	// BBO and depth return to their pre-submit values.
	assert.Equal(t, before, b.Snapshot(10))
}

func TestCancelledOrdersNeverTrade(t *testing.T) {
	b := newTestBook()

	// N orders at one price, cancelled in arbitrary order.
	ids := make([]string, 0, 4)
	for range 4 {
		ids = append(ids, limit(t, b, Sell, "51000", "1.0").OrderID)
	}
	for _, i := range []int{2, 0, 3, 1} {
		_, err := b.Cancel(ids[i])
		require.NoError(t, err)
	}

	// A taker of the full size finds nothing.
	res, err := b.Submit(Buy, LimitOrder, d("51000"), d("4.0"))
	require.NoError(t, err)
	assert.Empty(t, res.Executions)
	assert.Equal(t, Accepted, res.Status)
}

func TestCancelUnknownIdempotent(t *testing.T) {
	b := newTestBook()
	limit(t, b, Buy, "50000", "1.0")
	before := b.Snapshot(10)

	for range 2 {
		_, err := b.Cancel("no-such-order")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	}
	assert.Equal(t, before, b.Snapshot(10))
}

func TestBookNeverCrossedAtRest(t *testing.T) {
	b := newTestBook()

	limit(t, b, Buy, "50000", "1.0")
	limit(t, b, Sell, "51000", "1.0")
	limit(t, b, Buy, "50900", "0.5")
	limit(t, b, Sell, "50950", "0.5")
	limit(t, b, Buy, "52000", "3.0") // sweeps the ask side and rests

	bid, ok := b.BestBid()
	require.True(t, ok)
	if ask, ok := b.BestAsk(); ok {
		assert.True(t, bid.LessThan(ask), "book crossed: bid %s >= ask %s", bid, ask)
	}
}

func TestConservation(t *testing.T) {
	b := newTestBook()

	submitted := decimal.Zero
	filled := decimal.Zero
	cancelled := decimal.Zero

	track := func(res AcceptResult, err error) {
		require.NoError(t, err)
		for _, tr := range res.Executions {
			// A trade fills taker and maker alike, so it accounts
			// twice against the submitted total.
			filled = filled.Add(tr.Quantity.Mul(d("2")))
		}
		if res.Status == Cancelled || res.Status == PartiallyFilled && res.Remaining.Sign() > 0 {
			cancelled = cancelled.Add(res.Remaining)
		}
	}

	for _, o := range []struct {
		side  Side
		typ   OrderType
		price string
		qty   string
	}{
		{Buy, LimitOrder, "50000", "1.0"},
		{Buy, LimitOrder, "49900", "2.0"},
		{Sell, LimitOrder, "50100", "1.5"},
		{Sell, LimitOrder, "50000", "0.5"}, // crosses
		{Buy, IOCOrder, "50100", "3.0"},    // partial, residual cancelled
		{Sell, MarketOrder, "", "1.2"},
	} {
		price := decimal.Zero
		if o.price != "" {
			price = d(o.price)
		}
		submitted = submitted.Add(d(o.qty))
		track(b.Submit(o.side, o.typ, price, d(o.qty)))
	}

	resting := b.RestingVolume(Buy).Add(b.RestingVolume(Sell))
	assert.True(t, submitted.Equal(filled.Add(resting).Add(cancelled)),
		"submitted %s != filled %s + resting %s + cancelled %s",
		submitted, filled, resting, cancelled)
}

func TestRestingCap(t *testing.T) {
	b := New("BTC-USDT", 2)

	limit(t, b, Buy, "50000", "1.0")
	limit(t, b, Buy, "49900", "1.0")

	res, err := b.Submit(Buy, LimitOrder, d("49800"), d("1.0"))
	assert.ErrorIs(t, err, ErrBookFull)
	assert.Equal(t, Cancelled, res.Status)
	assert.Equal(t, 2, b.RestingOrders())

	// Crossing orders still execute at the cap; only resting is refused.
	sell, err := b.Submit(Sell, LimitOrder, d("50000"), d("1.0"))
	require.NoError(t, err)
	assert.Equal(t, Filled, sell.Status)
}

func TestDepthAggregation(t *testing.T) {
	b := newTestBook()

	limit(t, b, Sell, "51000", "0.3")
	limit(t, b, Sell, "51000", "0.7")
	limit(t, b, Sell, "51100", "2.0")
	limit(t, b, Buy, "50000", "1.0")

	snap := b.Snapshot(10)
	require.Len(t, snap.Asks, 2)
	assert.True(t, snap.Asks[0].Price.Equal(d("51000")))
	assert.True(t, snap.Asks[0].Quantity.Equal(d("1.0")))
	assert.True(t, snap.Asks[1].Price.Equal(d("51100")))
	require.Len(t, snap.Bids, 1)
	require.NotNil(t, snap.BestAsk)
	assert.True(t, snap.BestAsk.Equal(d("51000")))

	// Truncation to N.
	short := b.Snapshot(1)
	assert.Len(t, short.Asks, 1)
}
