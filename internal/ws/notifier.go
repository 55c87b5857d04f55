package ws

import (
	"chatroomgo/internal/services/message"

	"go.uber.org/zap"
)

// Notifier publishes persisted messages to the room and direct hubs.
type Notifier struct {
	rooms  *Hub
	direct *Hub
}

var _ message.Publisher = (*Notifier)(nil)

func NewNotifier(rooms, direct *Hub) *Notifier {
	return &Notifier{rooms: rooms, direct: direct}
}

func (n *Notifier) PublishRoomMessage(m *message.RoomMessage) {
	delivered := n.rooms.Broadcast(m.RoomID, NewRoomMessagePayload(m))
	zap.L().Debug("ws.publish_room",
		zap.Int64("room_id", m.RoomID),
		zap.Int64("message_id", m.ID),
		zap.Int("delivered", delivered),
	)
}

func (n *Notifier) PublishDirectMessage(m *message.DirectMessage) {
	delivered := n.direct.Broadcast(m.ReceiverID, NewDirectMessagePayload(m))
	zap.L().Debug("ws.publish_direct",
		zap.Int64("receiver_id", m.ReceiverID),
		zap.Int64("message_id", m.ID),
		zap.Int("delivered", delivered),
	)
}
