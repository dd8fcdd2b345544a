// Package engine is the matching venue's facade: it owns the
// symbol-to-book registry, serializes mutations per symbol, and fans
// the resulting events out to subscribers.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kestrel/internal/book"
	"kestrel/internal/feed"
)

// ErrBadRequest covers every validation failure on a submission:
// non-positive quantity, missing limit price, malformed fields.
var ErrBadRequest = errors.New("bad request")

type Config struct {
	// DepthLevels is the number of levels per side included in depth
	// events and snapshots.
	DepthLevels int
	// FeedBuffer is the per-subscriber event buffer size.
	FeedBuffer int
	// MaxRestingOrders caps resting orders per symbol. Zero means
	// unbounded.
	MaxRestingOrders int
}

const defaultDepthLevels = 10

// symbolBook pairs a book with the lock that is its mutation right.
// Submit and cancel hold it exclusively for the full call, events
// included, so subscribers observe per-symbol effects in call order.
type symbolBook struct {
	mu   sync.RWMutex
	book *book.Book
}

type Engine struct {
	mu    sync.RWMutex
	books map[string]*symbolBook

	cfg        Config
	trades     *feed.Broadcast[book.Trade]
	marketData *feed.Broadcast[MarketData]
	log        zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Engine {
	if cfg.DepthLevels <= 0 {
		cfg.DepthLevels = defaultDepthLevels
	}
	return &Engine{
		books:      make(map[string]*symbolBook),
		cfg:        cfg,
		trades:     feed.New[book.Trade](cfg.FeedBuffer),
		marketData: feed.New[MarketData](cfg.FeedBuffer),
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// bookFor returns the book for a symbol, creating it on first use.
func (e *Engine) bookFor(symbol string) *symbolBook {
	e.mu.RLock()
	sb, ok := e.books[symbol]
	e.mu.RUnlock()
	if ok {
		return sb
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Re-check: another submitter may have won the race.
	if sb, ok = e.books[symbol]; ok {
		return sb
	}
	sb = &symbolBook{book: book.New(symbol, e.cfg.MaxRestingOrders)}
	e.books[symbol] = sb
	e.log.Info().Str("symbol", symbol).Msg("new order book")
	return sb
}

// lookup returns the book for a symbol without creating one.
func (e *Engine) lookup(symbol string) (*symbolBook, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sb, ok := e.books[symbol]
	return sb, ok
}

// SubmitOrder validates and executes one order, publishing its events
// before returning. Unknown symbols get a fresh book.
func (e *Engine) SubmitOrder(symbol string, side book.Side, typ book.OrderType, price, qty decimal.Decimal) (book.AcceptResult, error) {
	if symbol == "" {
		return book.AcceptResult{}, fmt.Errorf("%w: symbol is required", ErrBadRequest)
	}
	if qty.Sign() <= 0 {
		return book.AcceptResult{}, fmt.Errorf("%w: quantity must be positive", ErrBadRequest)
	}
	if typ == book.MarketOrder {
		if price.Sign() != 0 {
			return book.AcceptResult{}, fmt.Errorf("%w: market orders carry no price", ErrBadRequest)
		}
	} else if price.Sign() <= 0 {
		return book.AcceptResult{}, fmt.Errorf("%w: %s orders require a positive limit price", ErrBadRequest, typ)
	}

	sb := e.bookFor(symbol)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	preBid, preBidOk := sb.book.BestBid()
	preAsk, preAskOk := sb.book.BestAsk()

	result, err := sb.book.Submit(side, typ, price, qty)

	// Events go out while the mutation right is still held: trades in
	// match order, then depth, then BBO. A later submit on this symbol
	// cannot interleave its events with ours.
	for _, t := range result.Executions {
		e.trades.Publish(t)
	}
	if result.DepthChanged {
		e.publishDepth(sb.book)
		e.publishBBOIfChanged(sb.book, preBid, preBidOk, preAsk, preAskOk)
	}

	if err != nil {
		e.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Str("side", side.String()).
			Str("type", typ.String()).
			Msg("order refused")
	} else {
		e.log.Debug().
			Str("symbol", symbol).
			Str("side", side.String()).
			Str("type", typ.String()).
			Str("status", result.Status.String()).
			Int("executions", len(result.Executions)).
			Msg("order submitted")
	}

	return result, err
}

// CancelOrder removes a resting order. Unknown symbols and unknown ids
// both report ErrOrderNotFound; neither mutates anything.
func (e *Engine) CancelOrder(symbol, orderID string) (decimal.Decimal, error) {
	sb, ok := e.lookup(symbol)
	if !ok {
		return decimal.Zero, book.ErrOrderNotFound
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	preBid, preBidOk := sb.book.BestBid()
	preAsk, preAskOk := sb.book.BestAsk()

	remaining, err := sb.book.Cancel(orderID)
	if err != nil {
		return decimal.Zero, err
	}

	e.publishDepth(sb.book)
	e.publishBBOIfChanged(sb.book, preBid, preBidOk, preAsk, preAskOk)

	e.log.Debug().
		Str("symbol", symbol).
		Str("order_id", orderID).
		Str("remaining", remaining.String()).
		Msg("order cancelled")

	return remaining, nil
}

// BestBidAsk reports the top of book. Nil means that side is empty.
// Querying an unknown symbol does not create a book.
func (e *Engine) BestBidAsk(symbol string) (bestBid, bestAsk *decimal.Decimal) {
	sb, ok := e.lookup(symbol)
	if !ok {
		return nil, nil
	}
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	if bid, ok := sb.book.BestBid(); ok {
		bestBid = &bid
	}
	if ask, ok := sb.book.BestAsk(); ok {
		bestAsk = &ask
	}
	return bestBid, bestAsk
}

// Snapshot returns the top-N depth view for a symbol.
func (e *Engine) Snapshot(symbol string) book.Snapshot {
	sb, ok := e.lookup(symbol)
	if !ok {
		return book.Snapshot{Symbol: symbol}
	}
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.book.Snapshot(e.cfg.DepthLevels)
}

// SubscribeTrades attaches a new subscriber to the trade topic.
func (e *Engine) SubscribeTrades() *feed.Sub[book.Trade] {
	return e.trades.Subscribe()
}

// SubscribeMarketData attaches a new subscriber to the BBO/depth topic.
func (e *Engine) SubscribeMarketData() *feed.Sub[MarketData] {
	return e.marketData.Subscribe()
}

func (e *Engine) publishDepth(b *book.Book) {
	snap := b.Snapshot(e.cfg.DepthLevels)
	e.marketData.Publish(MarketData{
		Kind:   DepthUpdate,
		Symbol: b.Symbol(),
		Bids:   snap.Bids,
		Asks:   snap.Asks,
	})
}

func (e *Engine) publishBBOIfChanged(b *book.Book, preBid decimal.Decimal, preBidOk bool, preAsk decimal.Decimal, preAskOk bool) {
	postBid, postBidOk := b.BestBid()
	postAsk, postAskOk := b.BestAsk()
	if bestUnchanged(preBid, preBidOk, postBid, postBidOk) &&
		bestUnchanged(preAsk, preAskOk, postAsk, postAskOk) {
		return
	}
	md := MarketData{Kind: BBOUpdate, Symbol: b.Symbol()}
	if postBidOk {
		md.BestBid = &postBid
	}
	if postAskOk {
		md.BestAsk = &postAsk
	}
	e.marketData.Publish(md)
}

func bestUnchanged(pre decimal.Decimal, preOk bool, post decimal.Decimal, postOk bool) bool {
	if preOk != postOk {
		return false
	}
	return !preOk || pre.Equal(post)
}
