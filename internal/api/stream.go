package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kestrel/internal/book"
	"kestrel/internal/engine"
	"kestrel/internal/feed"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// laggedNotice is sent in-band when a subscriber overflowed its buffer
// and lost events since the previous frame.
var laggedNotice = map[string]string{"type": "lagged"}

// Streams serves the WebSocket event endpoints. Each connection owns
// an independent feed subscription; a connection that cannot keep up
// loses its oldest events and is told so, but never stalls the engine.
type Streams struct {
	engine   *engine.Engine
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewStreams(eng *engine.Engine, log zerolog.Logger) *Streams {
	return &Streams{
		engine: eng,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// HandleTrades handles GET /ws/trades.
func (s *Streams) HandleTrades(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	sub := s.engine.SubscribeTrades()
	go streamPump(s, conn, sub, func(t book.Trade) any { return tradeMessage(t) })
}

// HandleMarketData handles GET /ws/market-data.
func (s *Streams) HandleMarketData(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	sub := s.engine.SubscribeMarketData()
	go streamPump(s, conn, sub, func(md engine.MarketData) any { return marketDataMessage(md) })
}

// streamPump drains one subscription onto one connection until either
// side goes away. The engine is insulated twice over: the subscription
// buffer absorbs bursts, and a write that cannot complete within
// writeWait kills only this connection.
func streamPump[T any](s *Streams, conn *websocket.Conn, sub *feed.Sub[T], convert func(T) any) {
	defer func() {
		sub.Close()
		conn.Close()
		s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("stream closed")
	}()

	// Reader: we serve a one-way stream, but control frames still need
	// consuming and a dead peer needs detecting.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if sub.Lagged() {
				if err := conn.WriteJSON(laggedNotice); err != nil {
					return
				}
			}
			if err := conn.WriteJSON(convert(v)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
