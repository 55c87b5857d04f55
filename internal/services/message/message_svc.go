package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"chatroomgo/internal/services/account"

	"go.uber.org/zap"
)

const MaxContentLength = 4000

var (
	ErrEmptyContent   = errors.New("content must not be empty")
	ErrContentTooLong = errors.New("content too long")
)

// Publisher fans a persisted record out to live connections. Delivery is
// best effort and never reports errors back to the sender.
type Publisher interface {
	PublishRoomMessage(msg *RoomMessage)
	PublishDirectMessage(msg *DirectMessage)
}

type roomAuthorizer interface {
	Authorize(ctx context.Context, userID, roomID int64) error
}

type userLookup interface {
	GetUser(ctx context.Context, id int64) (*account.UserDTO, error)
}

type sendLimiter interface {
	Allow(ctx context.Context, userID int64) error
}

type IMessageService interface {
	SendRoomMessage(ctx context.Context, author account.UserDTO, roomID int64, content string) (*RoomMessage, error)
	SendDirectMessage(ctx context.Context, sender account.UserDTO, receiverID int64, content string) (*DirectMessage, error)
	ListRoomMessages(ctx context.Context, userID, roomID int64, limit, offset int) ([]RoomMessage, error)
	ListDirectMessages(ctx context.Context, senderID, receiverID int64, limit, offset int) ([]DirectMessage, error)
}

type messageService struct {
	store     Store
	rooms     roomAuthorizer
	users     userLookup
	limiter   sendLimiter
	publisher Publisher
}

var _ IMessageService = (*messageService)(nil)

func NewMessageService(store Store, rooms roomAuthorizer, users userLookup,
	limiter sendLimiter, publisher Publisher) IMessageService {
	return &messageService{
		store:     store,
		rooms:     rooms,
		users:     users,
		limiter:   limiter,
		publisher: publisher,
	}
}

// SendRoomMessage authorizes, persists, then publishes. Nothing is published
// unless the insert committed.
func (svc *messageService) SendRoomMessage(ctx context.Context, author account.UserDTO,
	roomID int64, content string) (*RoomMessage, error) {

	if err := checkContent(content); err != nil {
		return nil, err
	}
	if err := svc.rooms.Authorize(ctx, author.ID, roomID); err != nil {
		return nil, err
	}
	if err := svc.limiter.Allow(ctx, author.ID); err != nil {
		return nil, err
	}

	msg, err := svc.store.AppendRoomMessage(ctx, roomID, author.ID, content)
	if err != nil {
		zap.L().Error("message.persist_room", zap.Int64("room_id", roomID), zap.Error(err))
		return nil, fmt.Errorf("persist room message: %w", err)
	}
	msg.Author = author

	svc.publisher.PublishRoomMessage(msg)
	return msg, nil
}

func (svc *messageService) SendDirectMessage(ctx context.Context, sender account.UserDTO,
	receiverID int64, content string) (*DirectMessage, error) {

	if err := checkContent(content); err != nil {
		return nil, err
	}
	if _, err := svc.users.GetUser(ctx, receiverID); err != nil {
		return nil, err
	}
	if err := svc.limiter.Allow(ctx, sender.ID); err != nil {
		return nil, err
	}

	msg, err := svc.store.AppendDirectMessage(ctx, sender.ID, receiverID, content)
	if err != nil {
		zap.L().Error("message.persist_direct", zap.Int64("receiver_id", receiverID), zap.Error(err))
		return nil, fmt.Errorf("persist direct message: %w", err)
	}
	msg.Sender = sender

	svc.publisher.PublishDirectMessage(msg)
	return msg, nil
}

func (svc *messageService) ListRoomMessages(ctx context.Context, userID, roomID int64,
	limit, offset int) ([]RoomMessage, error) {

	if err := svc.rooms.Authorize(ctx, userID, roomID); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = 50
	}
	return svc.store.ListRoomMessages(ctx, roomID, limit, offset)
}

func (svc *messageService) ListDirectMessages(ctx context.Context, senderID, receiverID int64,
	limit, offset int) ([]DirectMessage, error) {

	if limit == 0 {
		limit = 50
	}
	return svc.store.ListDirectMessages(ctx, senderID, receiverID, limit, offset)
}

func checkContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}
