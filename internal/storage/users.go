package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User 用户凭据
type User struct {
	ID        int64     `json:"id"`
	APIKey    string    `json:"-"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAPIKey returns a fresh random api key.
func NewAPIKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Authenticate 校验 user_id 与 api_key 是否匹配
//
// Both values are bound as parameters. A missing user and a wrong key are
// reported the same way, as ErrNotFound.
func (c *Conn) Authenticate(ctx context.Context, userID int64, apiKey string) (*User, error) {
	return authenticate(ctx, c.conn, userID, apiKey)
}

// Authenticate is the pool-level variant used by the HTTP handlers.
func (db *DB) Authenticate(ctx context.Context, userID int64, apiKey string) (*User, error) {
	return authenticate(ctx, db.DB, userID, apiKey)
}

func authenticate(ctx context.Context, q querier, userID int64, apiKey string) (*User, error) {
	var u User
	err := q.QueryRowContext(ctx,
		"SELECT id FROM users WHERE id = ? AND api_key = ? LIMIT 1",
		userID, apiKey,
	).Scan(&u.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser 创建用户；ID 为 0 时由数据库分配，APIKey 为空时自动生成
func (db *DB) CreateUser(ctx context.Context, u *User) (*User, error) {
	created := *u
	if created.APIKey == "" {
		created.APIKey = NewAPIKey()
	}
	created.CreatedAt = time.Now().UTC()

	var id any
	if created.ID > 0 {
		id = created.ID
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO users (id, api_key, email, name, created_at) VALUES (?, ?, ?, ?, ?)",
		id, created.APIKey, created.Email, created.Name, created.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if created.ID == 0 {
		if created.ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}
	return &created, nil
}

// GetUser 获取用户
func (db *DB) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := db.QueryRowContext(ctx,
		"SELECT id, api_key, email, name, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.APIKey, &u.Email, &u.Name, sqlTime{&u.CreatedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RotateAPIKey 重新生成用户的 api_key
func (db *DB) RotateAPIKey(ctx context.Context, id int64) (string, error) {
	key := NewAPIKey()
	res, err := db.ExecContext(ctx, "UPDATE users SET api_key = ? WHERE id = ?", key, id)
	if err != nil {
		return "", err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if affected == 0 {
		return "", ErrNotFound
	}
	return key, nil
}
