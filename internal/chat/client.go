package chat

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4096
)

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	log  *slog.Logger

	// Buffered channel of outbound frames. Closed by the hub only.
	send chan []byte

	userID    int64
	sessionID string
	profile   ContactPayload
}

// readPump pumps inbound frames from the websocket to the hub. The only
// client-initiated event is joinGroup; everything else arrives over REST.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read failed", "user", c.userID, "error", err)
			}
			break
		}

		var evt inboundEvent
		if err := json.Unmarshal(message, &evt); err != nil {
			c.log.Debug("unreadable frame dropped", "user", c.userID)
			continue
		}

		switch evt.Event {
		case EventJoinGroup:
			if groupID, ok := decodeGroupID(evt.Data); ok {
				c.hub.Join(c, groupID)
			}
		}
	}
}

// decodeGroupID accepts both a JSON number and a numeric string; browser
// clients historically sent either.
func decodeGroupID(data json.RawMessage) (int64, bool) {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// writePump pumps frames from the hub to the websocket connection and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
