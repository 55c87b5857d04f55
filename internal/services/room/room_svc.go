package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RoomDTO struct {
	ID        int64     `json:"id"         example:"7"`
	Name      string    `json:"name"       example:"general"`
	OwnerID   int64     `json:"owner_id"   example:"1"`
	CreatedAt time.Time `json:"created_at" example:"2025-07-27T16:05:05Z"`
} // @name Room

type MemberDTO struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
} // @name RoomMember

const redisMemberKeyPrefix = "mbr:"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomNameTaken = errors.New("room already exists")
	ErrNotMember     = errors.New("not a member of this room")
)

type IRoomService interface {
	Create(ctx context.Context, ownerID int64, name string) (*RoomDTO, error)
	Get(ctx context.Context, roomID int64) (*RoomDTO, error)
	List(ctx context.Context, limit, offset int) ([]RoomDTO, error)
	Members(ctx context.Context, roomID int64) ([]MemberDTO, error)
	Join(ctx context.Context, userID, roomID int64) error
	Leave(ctx context.Context, userID, roomID int64) error

	RoomExists(ctx context.Context, roomID int64) (bool, error)
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)
	// Authorize checks existence first, then membership.
	Authorize(ctx context.Context, userID, roomID int64) error
}

// memberCache is the subset of *redis.Client used to cache positive
// membership answers.
type memberCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache values. A revoked marker is written by Leave before the row goes
// away, so a fill racing with Leave cannot resurrect the membership.
const (
	memberCached  = "1"
	memberRevoked = "0"
)

type roomService struct {
	db       *sql.DB
	cache    memberCache
	cacheTTL time.Duration
}

var _ IRoomService = (*roomService)(nil)

// NewRoomService builds the room service. cache may be nil, and a cacheTTL
// of 0 also disables caching.
func NewRoomService(db *sql.DB, cache memberCache, cacheTTL time.Duration) IRoomService {
	if cacheTTL <= 0 {
		cache = nil
	}
	return &roomService{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Create inserts the room and makes the owner its first member.
func (svc *roomService) Create(ctx context.Context, ownerID int64, name string) (*RoomDTO, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const insRoom = `
	  INSERT INTO rooms (name, owner_id)
	       VALUES ($1, $2)
	  ON CONFLICT (name) DO NOTHING
	    RETURNING id, created_at`
	dto := &RoomDTO{Name: strings.TrimSpace(name), OwnerID: ownerID}
	if err := tx.QueryRowContext(ctx, insRoom, dto.Name, ownerID).Scan(&dto.ID, &dto.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNameTaken
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_rooms (user_id, room_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		ownerID, dto.ID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return dto, nil
}

func (svc *roomService) Get(ctx context.Context, roomID int64) (*RoomDTO, error) {
	dto := &RoomDTO{}
	err := svc.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM rooms WHERE id = $1`, roomID,
	).Scan(&dto.ID, &dto.Name, &dto.OwnerID, &dto.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return dto, nil
}

func (svc *roomService) List(ctx context.Context, limit, offset int) ([]RoomDTO, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := svc.db.QueryContext(ctx,
		`SELECT id, name, owner_id, created_at FROM rooms ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]RoomDTO, 0, limit)
	for rows.Next() {
		var r RoomDTO
		if err := rows.Scan(&r.ID, &r.Name, &r.OwnerID, &r.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (svc *roomService) Members(ctx context.Context, roomID int64) ([]MemberDTO, error) {
	const q = `SELECT u.id, u.username, ur.joined_at
	             FROM user_rooms ur
	             JOIN users u ON u.id = ur.user_id
	            WHERE ur.room_id = $1
	         ORDER BY ur.joined_at`
	rows, err := svc.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []MemberDTO
	for rows.Next() {
		var m MemberDTO
		if err := rows.Scan(&m.UserID, &m.Username, &m.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (svc *roomService) Join(ctx context.Context, userID, roomID int64) error {
	ok, err := svc.RoomExists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoomNotFound
	}
	if _, err = svc.db.ExecContext(ctx,
		`INSERT INTO user_rooms (user_id, room_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roomID,
	); err != nil {
		return err
	}
	if svc.cache != nil {
		// clears a revoked marker left by an earlier Leave
		if err := svc.cache.Del(ctx, memberKey(userID, roomID)).Err(); err != nil {
			zap.L().Warn("room.cache_del", zap.Int64("room_id", roomID), zap.Error(err))
		}
	}
	return nil
}

// Leave is idempotent: leaving a room you are not in is not an error.
func (svc *roomService) Leave(ctx context.Context, userID, roomID int64) error {
	if svc.cache != nil {
		key := memberKey(userID, roomID)
		if err := svc.cache.Set(ctx, key, memberRevoked, svc.cacheTTL).Err(); err != nil {
			zap.L().Warn("room.cache_revoke", zap.String("key", key), zap.Error(err))
		}
	}
	_, err := svc.db.ExecContext(ctx,
		`DELETE FROM user_rooms WHERE user_id = $1 AND room_id = $2`, userID, roomID)
	return err
}

func (svc *roomService) RoomExists(ctx context.Context, roomID int64) (bool, error) {
	var ok bool
	err := svc.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID,
	).Scan(&ok)
	return ok, err
}

// IsMember answers from the Redis cache when it can. Only positive answers
// are cached, and never over a revoked marker.
func (svc *roomService) IsMember(ctx context.Context, userID, roomID int64) (bool, error) {
	key := memberKey(userID, roomID)
	revoked := false
	if svc.cache != nil {
		v, err := svc.cache.Get(ctx, key).Result()
		switch {
		case err == nil && v == memberCached:
			return true, nil
		case err == nil:
			revoked = true
		case !errors.Is(err, redis.Nil):
			zap.L().Warn("room.cache_get", zap.String("key", key), zap.Error(err))
		}
	}

	var ok bool
	err := svc.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_rooms WHERE user_id = $1 AND room_id = $2)`,
		userID, roomID,
	).Scan(&ok)
	if err != nil {
		return false, err
	}

	if ok && !revoked && svc.cache != nil {
		if err := svc.cache.SetNX(ctx, key, memberCached, svc.cacheTTL).Err(); err != nil {
			zap.L().Warn("room.cache_set", zap.String("key", key), zap.Error(err))
		}
	}
	return ok, nil
}

func (svc *roomService) Authorize(ctx context.Context, userID, roomID int64) error {
	exists, err := svc.RoomExists(ctx, roomID)
	if err != nil {
		return fmt.Errorf("room lookup: %w", err)
	}
	if !exists {
		return ErrRoomNotFound
	}
	member, err := svc.IsMember(ctx, userID, roomID)
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}
	if !member {
		return ErrNotMember
	}
	return nil
}

func memberKey(userID, roomID int64) string {
	return fmt.Sprintf("%s%d:%d", redisMemberKeyPrefix, roomID, userID)
}
