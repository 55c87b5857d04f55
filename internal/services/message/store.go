package message

import (
	"context"
	"database/sql"
	"time"

	"chatroomgo/internal/services/account"
)

// RoomMessage is the durable record of one room send. Author is the full
// user entity; it never goes on the wire as-is.
type RoomMessage struct {
	ID        int64
	RoomID    int64
	Author    account.UserDTO
	Content   string
	Timestamp time.Time
}

type DirectMessage struct {
	ID         int64
	Sender     account.UserDTO
	ReceiverID int64
	Content    string
	Timestamp  time.Time
}

// Store persists messages. Append* assign id and server timestamp and fail
// only on storage errors.
type Store interface {
	AppendRoomMessage(ctx context.Context, roomID, userID int64, content string) (*RoomMessage, error)
	AppendDirectMessage(ctx context.Context, senderID, receiverID int64, content string) (*DirectMessage, error)
	ListRoomMessages(ctx context.Context, roomID int64, limit, offset int) ([]RoomMessage, error)
	ListDirectMessages(ctx context.Context, senderID, receiverID int64, limit, offset int) ([]DirectMessage, error)
}

type pgStore struct {
	db *sql.DB
}

func NewPgStore(db *sql.DB) Store { return &pgStore{db: db} }

func (s *pgStore) AppendRoomMessage(ctx context.Context, roomID, userID int64, content string) (*RoomMessage, error) {
	const q = `
	  INSERT INTO messages (room_id, user_id, content)
	       VALUES ($1, $2, $3)
	    RETURNING id, timestamp`
	m := &RoomMessage{RoomID: roomID, Author: account.UserDTO{ID: userID}, Content: content}
	if err := s.db.QueryRowContext(ctx, q, roomID, userID, content).Scan(&m.ID, &m.Timestamp); err != nil {
		return nil, err
	}
	m.Timestamp = m.Timestamp.UTC()
	return m, nil
}

func (s *pgStore) AppendDirectMessage(ctx context.Context, senderID, receiverID int64, content string) (*DirectMessage, error) {
	const q = `
	  INSERT INTO direct_messages (sender_id, receiver_id, content)
	       VALUES ($1, $2, $3)
	    RETURNING id, timestamp`
	m := &DirectMessage{Sender: account.UserDTO{ID: senderID}, ReceiverID: receiverID, Content: content}
	if err := s.db.QueryRowContext(ctx, q, senderID, receiverID, content).Scan(&m.ID, &m.Timestamp); err != nil {
		return nil, err
	}
	m.Timestamp = m.Timestamp.UTC()
	return m, nil
}

func (s *pgStore) ListRoomMessages(ctx context.Context, roomID int64, limit, offset int) ([]RoomMessage, error) {
	const q = `SELECT m.id, m.room_id, u.id, u.username, m.content, m.timestamp
	             FROM messages m
	             JOIN users u ON u.id = m.user_id
	            WHERE m.room_id = $1
	         ORDER BY m.id
	            LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, q, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]RoomMessage, 0, limit)
	for rows.Next() {
		var m RoomMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Author.ID, &m.Author.Username,
			&m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Timestamp = m.Timestamp.UTC()
		list = append(list, m)
	}
	return list, rows.Err()
}

func (s *pgStore) ListDirectMessages(ctx context.Context, senderID, receiverID int64, limit, offset int) ([]DirectMessage, error) {
	const q = `SELECT d.id, u.id, u.username, d.receiver_id, d.content, d.timestamp
	             FROM direct_messages d
	             JOIN users u ON u.id = d.sender_id
	            WHERE d.sender_id = $1 AND d.receiver_id = $2
	         ORDER BY d.id
	            LIMIT $3 OFFSET $4`
	rows, err := s.db.QueryContext(ctx, q, senderID, receiverID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]DirectMessage, 0, limit)
	for rows.Next() {
		var m DirectMessage
		if err := rows.Scan(&m.ID, &m.Sender.ID, &m.Sender.Username, &m.ReceiverID,
			&m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Timestamp = m.Timestamp.UTC()
		list = append(list, m)
	}
	return list, rows.Err()
}
