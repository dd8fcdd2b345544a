package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kestrel/internal/book"
	"kestrel/internal/engine"
	"kestrel/internal/num"
)

// SubmitRequest is the JSON body of POST /orders. Quantity and price
// are decimal strings; price is required unless order_type is market.
type SubmitRequest struct {
	Symbol    string `json:"symbol"`
	OrderType string `json:"order_type"`
	Side      string `json:"side"`
	Quantity  string `json:"quantity"`
	Price     string `json:"price,omitempty"`
}

// parse validates the wire fields and converts them to engine types.
// Every failure maps to engine.ErrBadRequest.
func (r *SubmitRequest) parse() (side book.Side, typ book.OrderType, price, qty decimal.Decimal, err error) {
	side, err = book.ParseSide(r.Side)
	if err != nil {
		return side, typ, price, qty, fmt.Errorf("%w: %v", engine.ErrBadRequest, err)
	}
	typ, err = book.ParseOrderType(r.OrderType)
	if err != nil {
		return side, typ, price, qty, fmt.Errorf("%w: %v", engine.ErrBadRequest, err)
	}
	qty, err = num.ParsePositive(r.Quantity)
	if err != nil {
		return side, typ, price, qty, fmt.Errorf("%w: quantity: %v", engine.ErrBadRequest, err)
	}
	price = decimal.Zero
	if typ == book.MarketOrder {
		if r.Price != "" {
			return side, typ, price, qty, fmt.Errorf("%w: market orders carry no price", engine.ErrBadRequest)
		}
		return side, typ, price, qty, nil
	}
	if r.Price == "" {
		return side, typ, price, qty, fmt.Errorf("%w: %s orders require a price", engine.ErrBadRequest, r.OrderType)
	}
	price, err = num.ParsePositive(r.Price)
	if err != nil {
		return side, typ, price, qty, fmt.Errorf("%w: price: %v", engine.ErrBadRequest, err)
	}
	return side, typ, price, qty, nil
}

// TradeMessage is the wire form of a trade, decimals rendered as
// canonical strings.
type TradeMessage struct {
	TradeID       uint64    `json:"trade_id"`
	Symbol        string    `json:"symbol"`
	Price         string    `json:"price"`
	Quantity      string    `json:"quantity"`
	AggressorSide string    `json:"aggressor_side"`
	MakerOrderID  string    `json:"maker_order_id"`
	TakerOrderID  string    `json:"taker_order_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func tradeMessage(t book.Trade) TradeMessage {
	return TradeMessage{
		TradeID:       t.ID,
		Symbol:        t.Symbol,
		Price:         num.String(t.Price),
		Quantity:      num.String(t.Quantity),
		AggressorSide: t.AggressorSide,
		MakerOrderID:  t.MakerOrderID,
		TakerOrderID:  t.TakerOrderID,
		Timestamp:     t.Timestamp,
	}
}

type SubmitResponse struct {
	OrderID    string         `json:"order_id"`
	Status     string         `json:"status"`
	Executions []TradeMessage `json:"executions"`
	Reason     string         `json:"reason,omitempty"`
}

type CancelRequest struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"order_id"`
}

type CancelResponse struct {
	Status    string  `json:"status"` // "cancelled" or "not_found"
	Remaining *string `json:"remaining,omitempty"`
}

type BBOResponse struct {
	Symbol  string  `json:"symbol"`
	BestBid *string `json:"best_bid"`
	BestAsk *string `json:"best_ask"`
}

// DepthResponse reports top-N depth, each level a [price, quantity]
// string pair, bids descending and asks ascending.
type DepthResponse struct {
	Symbol string      `json:"symbol"`
	Bids   [][2]string `json:"bids"`
	Asks   [][2]string `json:"asks"`
}

func depthPairs(levels []book.Level) [][2]string {
	out := make([][2]string, len(levels))
	for i, l := range levels {
		out[i] = [2]string{num.String(l.Price), num.String(l.Quantity)}
	}
	return out
}

// MarketDataMessage is one frame on the market-data stream: a BBO
// update, a depth update, or a lagged notice after subscriber overflow.
type MarketDataMessage struct {
	Type    string      `json:"type"` // "bbo", "depth" or "lagged"
	Symbol  string      `json:"symbol,omitempty"`
	BestBid *string     `json:"best_bid,omitempty"`
	BestAsk *string     `json:"best_ask,omitempty"`
	Bids    [][2]string `json:"bids,omitempty"`
	Asks    [][2]string `json:"asks,omitempty"`
}

func marketDataMessage(md engine.MarketData) MarketDataMessage {
	msg := MarketDataMessage{Symbol: md.Symbol}
	switch md.Kind {
	case engine.BBOUpdate:
		msg.Type = "bbo"
		msg.BestBid = decimalString(md.BestBid)
		msg.BestAsk = decimalString(md.BestAsk)
	case engine.DepthUpdate:
		msg.Type = "depth"
		msg.Bids = depthPairs(md.Bids)
		msg.Asks = depthPairs(md.Asks)
	}
	return msg
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := num.String(*d)
	return &s
}
