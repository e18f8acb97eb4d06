package storage

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"
)

// Message 消息实体
type Message struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"sender_id"`
	RecipientID int64     `json:"recipient_id"`
	ConvoKey    *string   `json:"convo_key"`
	Payload     string    `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
	Seen        bool      `json:"-"`
}

// UnseenFilter selects the unseen messages of one recipient.
type UnseenFilter struct {
	RecipientID int64
	// ConvoKey restricts results to an exact conversation key; empty means any.
	ConvoKey string
	// Limit caps the number of rows; 0 means no limit.
	Limit int
}

const messageColumns = "id, sender_id, recipient_id, convo_key, payload, created_at, seen"

func (f UnseenFilter) where() (string, []any) {
	clause := "recipient_id = ? AND seen = 0"
	args := []any{f.RecipientID}
	if f.ConvoKey != "" {
		clause += " AND convo_key = ?"
		args = append(args, f.ConvoKey)
	}
	return clause, args
}

// selectUnseen builds the oldest-first unseen query for f.
func (f UnseenFilter) selectUnseen(columns string) (string, []any) {
	where, args := f.where()
	query := "SELECT " + columns + " FROM messages WHERE " + where + " ORDER BY created_at ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return query, args
}

// AppendMessage 写入一条新消息
func (db *DB) AppendMessage(ctx context.Context, m *Message) (*Message, error) {
	if m.RecipientID <= 0 || m.SenderID <= 0 {
		return nil, errors.New("sender_id and recipient_id are required")
	}

	created := *m
	created.Seen = false
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}
	created.CreatedAt = created.CreatedAt.UTC()

	var convo any
	if created.ConvoKey != nil && *created.ConvoKey != "" {
		convo = *created.ConvoKey
	} else {
		created.ConvoKey = nil
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO messages (sender_id, recipient_id, convo_key, payload, created_at, seen) VALUES (?, ?, ?, ?, ?, 0)",
		created.SenderID, created.RecipientID, convo, created.Payload, created.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if created.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &created, nil
}

// UnseenMessages 查询未读消息，按创建时间升序
func (c *Conn) UnseenMessages(ctx context.Context, f UnseenFilter) ([]*Message, error) {
	query, args := f.selectUnseen(messageColumns)
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// MarkSeen flips seen to true for the given ids and returns how many rows
// actually transitioned. Ids that are already seen are left alone.
func (c *Conn) MarkSeen(ctx context.Context, ids []int64) (int64, error) {
	return markSeen(ctx, c.conn, ids, 0)
}

// MarkSeenFor is MarkSeen restricted to messages addressed to recipientID.
func (db *DB) MarkSeenFor(ctx context.Context, recipientID int64, ids []int64) (int64, error) {
	return markSeen(ctx, db.DB, ids, recipientID)
}

// markSeenBatch bounds the bound parameters of one UPDATE well below
// SQLite's host-parameter limit.
const markSeenBatch = 500

// txBeginner is satisfied by *sql.DB and *sql.Conn.
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// markSeen updates ids in batches inside one transaction, so either every
// batch applies or none does.
func markSeen(ctx context.Context, b txBeginner, ids []int64, recipientID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for start := 0; start < len(ids); start += markSeenBatch {
		end := min(start+markSeenBatch, len(ids))
		n, err := markSeenChunk(ctx, tx, ids[start:end], recipientID)
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func markSeenChunk(ctx context.Context, q querier, ids []int64, recipientID int64) (int64, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}

	query := "UPDATE messages SET seen = 1 WHERE seen = 0 AND id IN (" + placeholders + ")"
	if recipientID > 0 {
		query += " AND recipient_id = ?"
		args = append(args, recipientID)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimUnseen selects and marks seen in one statement, so two concurrent
// claims for the same recipient never return the same message.
func (c *Conn) ClaimUnseen(ctx context.Context, f UnseenFilter) ([]*Message, error) {
	inner, args := f.selectUnseen("id")
	query := "UPDATE messages SET seen = 1 WHERE id IN (" + inner + ") RETURNING " + messageColumns

	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// RETURNING does not preserve the subquery order.
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// CountUnseen 统计未读消息数
func (db *DB) CountUnseen(ctx context.Context, f UnseenFilter) (int, error) {
	where, args := f.where()
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE "+where, args...).Scan(&n)
	return n, err
}

// PurgeSeen 删除早于 before 的已读消息，返回删除行数
//
// Unseen messages are never removed regardless of age.
func (db *DB) PurgeSeen(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		"DELETE FROM messages WHERE seen = 1 AND created_at < ?", before.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetMessage 获取单条消息
func (db *DB) GetMessage(ctx context.Context, id int64) (*Message, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return msgs[0], nil
}

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	defer rows.Close()

	messages := make([]*Message, 0)
	for rows.Next() {
		var m Message
		var convo sql.NullString
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &convo, &m.Payload, sqlTime{&m.CreatedAt}, &m.Seen); err != nil {
			return nil, err
		}
		if convo.Valid {
			key := convo.String
			m.ConvoKey = &key
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
