package link

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	apperrors "github.com/picoterm/host/internal/errors"
	"github.com/picoterm/host/internal/frame"
	"github.com/picoterm/host/internal/screen"
)

// WSClient is the viewer side of the WebSocket transport: it receives
// snapshot frames as binary messages and sends input tokens as text
// messages.
type WSClient struct {
	conn *websocket.Conn
}

// Dial connects to a picoterm host at url (ws://host:port/ws),
// retrying with exponential backoff until the context is cancelled.
func Dial(ctx context.Context, url string) (*WSClient, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0 // retry until cancelled

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			return &WSClient{conn: conn}, nil
		}
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(apperrors.CodeLinkOpenFailed,
				"cannot connect to "+url, err)
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, apperrors.Wrap(apperrors.CodeLinkOpenFailed,
				"cannot connect to "+url, err)
		}
		log.Printf("Connect to %s failed (%v), retrying in %s", url, err, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, apperrors.Wrap(apperrors.CodeLinkOpenFailed,
				"cannot connect to "+url, ctx.Err())
		}
	}
}

// Next blocks until the next complete snapshot frame arrives. Messages
// that do not decode as a frame are skipped.
func (c *WSClient) Next() (*screen.Grid, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeLinkReadFailed, "ws read", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if g, ok := frame.Decode(data); ok {
			return g, nil
		}
	}
}

// WriteToken sends one input token to the host.
func (c *WSClient) WriteToken(t frame.Token) error {
	data := frame.EncodeToken(t)
	// The server expects one token line per text message, no newline.
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return apperrors.Wrap(apperrors.CodeLinkWriteFailed, "ws write", err)
	}
	return nil
}

// Close shuts the connection down cleanly.
func (c *WSClient) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
