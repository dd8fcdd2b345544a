package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"kestrel/internal/book"
	"kestrel/internal/engine"
	"kestrel/internal/num"
)

// Handlers serves the synchronous order entry and query endpoints.
// The matching semantics live entirely in the engine; this layer only
// translates between JSON and engine types.
type Handlers struct {
	engine *engine.Engine
	log    zerolog.Logger
}

func NewHandlers(eng *engine.Engine, log zerolog.Logger) *Handlers {
	return &Handlers{engine: eng, log: log.With().Str("component", "api").Logger()}
}

// HandleSubmit handles POST /orders.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	side, typ, price, qty, err := req.parse()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.engine.SubmitOrder(req.Symbol, side, typ, price, qty)
	if err != nil && errors.Is(err, engine.ErrBadRequest) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := SubmitResponse{
		OrderID:    result.OrderID,
		Status:     result.Status.String(),
		Executions: make([]TradeMessage, 0, len(result.Executions)),
	}
	for _, t := range result.Executions {
		resp.Executions = append(resp.Executions, tradeMessage(t))
	}
	// Liquidity and capacity refusals still produced a terminal order
	// status; report them in-band rather than as transport errors.
	if err != nil {
		resp.Reason = err.Error()
	}
	h.writeJSON(w, resp)
}

// HandleCancel handles POST /orders/cancel.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" || req.OrderID == "" {
		http.Error(w, "symbol and order_id are required", http.StatusBadRequest)
		return
	}

	remaining, err := h.engine.CancelOrder(req.Symbol, req.OrderID)
	if err != nil {
		if errors.Is(err, book.ErrOrderNotFound) {
			h.writeJSON(w, CancelResponse{Status: "not_found"})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s := num.String(remaining)
	h.writeJSON(w, CancelResponse{Status: "cancelled", Remaining: &s})
}

// HandleBBO handles GET /bbo?symbol=BTC-USDT.
func (h *Handlers) HandleBBO(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	bid, ask := h.engine.BestBidAsk(symbol)
	h.writeJSON(w, BBOResponse{
		Symbol:  symbol,
		BestBid: decimalString(bid),
		BestAsk: decimalString(ask),
	})
}

// HandleDepth handles GET /depth?symbol=BTC-USDT.
func (h *Handlers) HandleDepth(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	snap := h.engine.Snapshot(symbol)
	h.writeJSON(w, DepthResponse{
		Symbol: symbol,
		Bids:   depthPairs(snap.Bids),
		Asks:   depthPairs(snap.Asks),
	})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("error writing response")
	}
}
