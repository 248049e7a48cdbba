// Package kvstore is a key-indexed record store backed by bbolt. Every record
// is a JSON document keyed by username; journal entries live in a nested
// bucket per user keyed by date so that a reverse cursor walk yields the
// most recent entries first.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finance-tracker/internal/ledger"
	"finance-tracker/internal/models"

	bolt "go.etcd.io/bbolt"
)

// Bucket names.
const (
	BucketUsers        = "users"
	BucketLedgers      = "ledgers"
	BucketTransactions = "transactions"
	BucketProfiles     = "profiles"
)

const keyDateLayout = "2006-01-02T15:04:05.000000000Z"

// Store represents the bbolt database wrapper.
type Store struct {
	db *bolt.DB
}

// New creates a new Store instance and initializes buckets.
func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{BucketUsers, BucketLedgers, BucketTransactions, BucketProfiles} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func getJSON(b *bolt.Bucket, key string, v any) error {
	data := b.Get([]byte(key))
	if data == nil {
		return models.ErrNotFound
	}
	return json.Unmarshal(data, v)
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return b.Put([]byte(key), data)
}

// userRecord keeps the password hash, which models.User hides from JSON.
type userRecord struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUser creates a user together with its empty ledger.
func (s *Store) CreateUser(_ context.Context, username, passwordHash string) (*models.User, error) {
	var u *models.User
	err := s.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket([]byte(BucketUsers))
		if users.Get([]byte(username)) != nil {
			return models.ErrUserExists
		}

		seq, err := users.NextSequence()
		if err != nil {
			return err
		}
		rec := userRecord{
			ID:           int64(seq),
			Username:     username,
			PasswordHash: passwordHash,
			CreatedAt:    time.Now().UTC(),
		}
		if err := putJSON(users, username, rec); err != nil {
			return err
		}
		if err := putJSON(tx.Bucket([]byte(BucketLedgers)), username, ledger.New(username)); err != nil {
			return err
		}

		u = &models.User{ID: rec.ID, Username: rec.Username, PasswordHash: rec.PasswordHash, CreatedAt: rec.CreatedAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	var rec userRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket([]byte(BucketUsers)), username, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &models.User{ID: rec.ID, Username: rec.Username, PasswordHash: rec.PasswordHash, CreatedAt: rec.CreatedAt}, nil
}

// UserCount returns the number of users.
func (s *Store) UserCount(_ context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(BucketUsers)).Stats().KeyN
		return nil
	})
	return n, err
}

// GetLedger loads the ledger of username.
func (s *Store) GetLedger(_ context.Context, username string) (*ledger.Ledger, error) {
	l := ledger.New(username)
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket([]byte(BucketLedgers)), username, l)
	})
	if err != nil {
		return nil, err
	}
	if l.Categories == nil {
		l.Categories = make(map[string]float64)
	}
	return l, nil
}

// SaveLedger persists l.
func (s *Store) SaveLedger(_ context.Context, l *ledger.Ledger) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return writeLedger(tx, l)
	})
}

func writeLedger(tx *bolt.Tx, l *ledger.Ledger) error {
	b := tx.Bucket([]byte(BucketLedgers))
	if b.Get([]byte(l.Username)) == nil {
		return models.ErrNotFound
	}
	return putJSON(b, l.Username, l)
}

func transactionKey(t *models.Transaction) []byte {
	return []byte(t.Date.UTC().Format(keyDateLayout) + "|" + t.ID)
}

// RecordTransaction stores t and the ledger it produced in one transaction.
func (s *Store) RecordTransaction(_ context.Context, t *models.Transaction, l *ledger.Ledger) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		journal, err := tx.Bucket([]byte(BucketTransactions)).CreateBucketIfNotExists([]byte(t.Username))
		if err != nil {
			return fmt.Errorf("create journal bucket: %w", err)
		}
		key := transactionKey(t)
		if journal.Get(key) != nil {
			return fmt.Errorf("transaction %s already recorded", t.ID)
		}
		if err := putJSON(journal, string(key), t); err != nil {
			return err
		}
		return writeLedger(tx, l)
	})
}

// ListTransactions retrieves all transactions of username, most recent first.
func (s *Store) ListTransactions(_ context.Context, username string) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	err := s.db.View(func(tx *bolt.Tx) error {
		journal := tx.Bucket([]byte(BucketTransactions)).Bucket([]byte(username))
		if journal == nil {
			return nil
		}
		c := journal.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var t models.Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("decode transaction %s: %w", k, err)
			}
			transactions = append(transactions, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// GetProfile retrieves the profile of username.
func (s *Store) GetProfile(_ context.Context, username string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket([]byte(BucketProfiles)), username, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile applies update to the profile of username, creating it if absent.
func (s *Store) UpdateProfile(_ context.Context, username string, update models.ProfileUpdate) (*models.Profile, error) {
	p := &models.Profile{Username: username}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketProfiles))
		if err := getJSON(b, username, p); err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		update.ApplyTo(p)
		return putJSON(b, username, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
