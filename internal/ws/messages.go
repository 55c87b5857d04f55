package ws

import (
	"time"

	"chatroomgo/internal/services/message"
)

const (
	EventRoomMessage     = "rooms/message"
	EventRoomConnected   = "rooms/connected"
	EventDirectMessage   = "direct/message"
	EventDirectConnected = "direct/connected"
)

// RoomMessagePayload is the flat wire form of a persisted room message.
type RoomMessagePayload struct {
	Event     string `json:"event"`
	ID        int64  `json:"id"`
	RoomID    int64  `json:"room_id"`
	UserID    int64  `json:"user_id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
} // @name RoomMessage

// DirectMessagePayload is the flat wire form of a persisted direct message.
type DirectMessagePayload struct {
	Event      string `json:"event"`
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp"`
} // @name DirectMessage

// ConnectedPayload is the first frame sent after registration.
type ConnectedPayload struct {
	Event  string `json:"event"`
	RoomID int64  `json:"room_id,omitempty"`
	UserID int64  `json:"user_id,omitempty"`
}

// RejectBody is the HTTP body of a refused handshake.
type RejectBody struct {
	Code   int    `json:"code"   example:"1008"`
	Reason string `json:"reason" example:"not_a_member"`
	Error  string `json:"error"`
} // @name HandshakeRejection

func NewRoomMessagePayload(m *message.RoomMessage) RoomMessagePayload {
	return RoomMessagePayload{
		Event:     EventRoomMessage,
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.Author.ID,
		Content:   m.Content,
		Timestamp: isoTimestamp(m.Timestamp),
	}
}

func NewDirectMessagePayload(m *message.DirectMessage) DirectMessagePayload {
	return DirectMessagePayload{
		Event:      EventDirectMessage,
		ID:         m.ID,
		SenderID:   m.Sender.ID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  isoTimestamp(m.Timestamp),
	}
}

func isoTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
