package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatroomgo/internal/auth"
)

type UserDTO struct {
	ID       int64  `json:"id"       example:"1"`
	Username string `json:"username" example:"alice"`
} // @name User

type TokenDTO struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type" example:"bearer"`
	ExpiresAt   time.Time `json:"expires_at"`
} // @name Token

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownSubject     = errors.New("token subject not found")
	ErrUserNotFound       = errors.New("user not found")
)

// IsCredentialError reports whether err means the presented token was
// rejected, as opposed to the lookup failing.
func IsCredentialError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrExpiredToken) ||
		errors.Is(err, ErrUnknownSubject)
}

type IAccountService interface {
	SignUp(ctx context.Context, username, password string) (*UserDTO, error)
	Login(ctx context.Context, username, password string) (*TokenDTO, error)
	// Verify turns a bearer token into the user it was issued for.
	Verify(ctx context.Context, token string) (*UserDTO, error)
	GetUser(ctx context.Context, id int64) (*UserDTO, error)
	ListUsers(ctx context.Context, limit, offset int) ([]UserDTO, error)
}

type accountService struct {
	db     *sql.DB
	tokens *auth.TokenManager
	hasher *auth.PasswordHasher
}

var _ IAccountService = (*accountService)(nil)

func NewAccountService(db *sql.DB, tokens *auth.TokenManager, hasher *auth.PasswordHasher) IAccountService {
	return &accountService{
		db:     db,
		tokens: tokens,
		hasher: hasher,
	}
}

func (svc *accountService) SignUp(ctx context.Context, username, password string) (*UserDTO, error) {
	username = strings.TrimSpace(username)
	hashed, err := svc.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	const q = `INSERT INTO users (username, hashed_password)
	                VALUES ($1, $2)
	           ON CONFLICT (username) DO NOTHING
	             RETURNING id`
	u := &UserDTO{Username: username}
	if err := svc.db.QueryRowContext(ctx, q, username, hashed).Scan(&u.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

func (svc *accountService) Login(ctx context.Context, username, password string) (*TokenDTO, error) {
	var hashed string
	err := svc.db.QueryRowContext(ctx,
		`SELECT hashed_password FROM users WHERE username = $1`, strings.TrimSpace(username),
	).Scan(&hashed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !svc.hasher.Verify(password, hashed) {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := svc.tokens.Issue(strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &TokenDTO{AccessToken: token, TokenType: "bearer", ExpiresAt: exp}, nil
}

func (svc *accountService) Verify(ctx context.Context, token string) (*UserDTO, error) {
	username, err := svc.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	u := &UserDTO{}
	err = svc.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownSubject
		}
		return nil, err
	}
	return u, nil
}

func (svc *accountService) GetUser(ctx context.Context, id int64) (*UserDTO, error) {
	u := &UserDTO{}
	err := svc.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (svc *accountService) ListUsers(ctx context.Context, limit, offset int) ([]UserDTO, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := svc.db.QueryContext(ctx,
		`SELECT id, username FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]UserDTO, 0, limit)
	for rows.Next() {
		var u UserDTO
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
