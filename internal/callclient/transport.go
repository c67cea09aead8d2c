package callclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/convo/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Conn is the client end of the signaling websocket.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu sync.Mutex
}

func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	log.Info().Str("module", "callclient").Str("url", url).Msg("signaling connected")
	return &Conn{ws: ws, writeTimeout: 5 * time.Second}, nil
}

func (c *Conn) Send(msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Join(name domain.Identity, room domain.RoomID) error {
	return c.Send(domain.Message{Type: domain.TypeJoin, Nickname: name, RoomID: room})
}

func (c *Conn) Chat(text string) error {
	return c.Send(domain.Message{Type: domain.TypeMessage, Text: text})
}

// ReadLoop hands every text frame to handle until the socket fails or
// ctx is done.
func (c *Conn) ReadLoop(ctx context.Context, handle func([]byte)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.Close() })
	defer stop()
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("signaling read: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}
