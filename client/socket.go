package client

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"murmur/internal/chat"
)

// Handlers receives the server-pushed events a connected client cares
// about. Nil fields are skipped.
type Handlers struct {
	OnContactAdded func(chat.ContactPayload)
	OnOnlineUsers  func([]int64)
	OnNewMessage   func(chat.Message)
}

// Socket is a thin reader around one websocket session.
type Socket struct {
	conn *websocket.Conn
}

// Dial connects and authenticates via the token query parameter, the same
// fallback path the server's auth middleware accepts.
func Dial(wsURL, token string) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", wsURL, token), nil)
	if err != nil {
		return nil, err
	}
	return &Socket{conn: conn}, nil
}

// JoinGroup asks the server to add this session to a group's room.
// Idempotent; safe to repeat after creating a group.
func (s *Socket) JoinGroup(groupID int64) error {
	return s.conn.WriteJSON(chat.Event{Event: chat.EventJoinGroup, Data: groupID})
}

// Listen dispatches inbound events until the connection closes.
func (s *Socket) Listen(h Handlers) error {
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}

		var evt struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(frame, &evt); err != nil {
			continue
		}

		switch evt.Event {
		case chat.EventContactAdded:
			if h.OnContactAdded != nil {
				var c chat.ContactPayload
				if json.Unmarshal(evt.Data, &c) == nil {
					h.OnContactAdded(c)
				}
			}
		case chat.EventOnlineUsers:
			if h.OnOnlineUsers != nil {
				var ids []int64
				if json.Unmarshal(evt.Data, &ids) == nil {
					h.OnOnlineUsers(ids)
				}
			}
		case chat.EventNewMessage:
			if h.OnNewMessage != nil {
				var m chat.Message
				if json.Unmarshal(evt.Data, &m) == nil {
					h.OnNewMessage(m)
				}
			}
		}
	}
}

func (s *Socket) Close() error {
	return s.conn.Close()
}
