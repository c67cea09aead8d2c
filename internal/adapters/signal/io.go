package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	var ping <-chan time.Time
	if ctl.opts.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.opts.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.ID())).Msg("writePump ctx done")
			c.Close()
			return
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(c.ID())).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

// readPump owns the connection lifetime: when it returns the gateway
// gets a close event and runs disconnect cleanup.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(c.ID())).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Orch.Closed(c)
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	if ctl.opts.PingPeriod > 0 {
		pongWait := ctl.opts.PingPeriod * 10 / 9
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.ID())).Msg("readPump ctx done")
			return
		default:
			mt, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("readPump read error")
				}
				return
			}
			if mt != websocket.TextMessage {
				log.Warn().Str("module", "signal").Str("conn", string(c.ID())).Msg("non-text frame dropped")
				continue
			}
			if !ctl.Orch.Received(c, data) {
				return
			}
		}
	}
}
