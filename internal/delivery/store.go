package delivery

import (
	"context"
	"time"

	"mixchat/internal/storage"
)

// Store hands out one datastore session per unit of work.
type Store interface {
	Acquire(ctx context.Context, timeout time.Duration) (Session, error)
}

// Session is a scoped datastore connection.
type Session interface {
	Authenticate(ctx context.Context, userID int64, apiKey string) (*storage.User, error)
	UnseenMessages(ctx context.Context, f storage.UnseenFilter) ([]*storage.Message, error)
	ClaimUnseen(ctx context.Context, f storage.UnseenFilter) ([]*storage.Message, error)
	MarkSeen(ctx context.Context, ids []int64) (int64, error)
	Close() error
}

type dbStore struct {
	db *storage.DB
}

// StoreFromDB adapts a storage.DB pool to Store.
func StoreFromDB(db *storage.DB) Store {
	return dbStore{db: db}
}

func (s dbStore) Acquire(ctx context.Context, timeout time.Duration) (Session, error) {
	conn, err := s.db.Acquire(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
