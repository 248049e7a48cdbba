package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finance-tracker/internal/ledger"
	"finance-tracker/internal/models"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dateLayout is fixed width so that dates sort correctly as text.
const dateLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite serializes writers anyway, and ":memory:" databases exist per
	// connection, so everything goes through one connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// withTx runs fn inside a transaction, committing only if fn succeeds.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateUser creates a user together with its empty ledger.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	u := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
			u.Username, u.PasswordHash, u.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return models.ErrUserExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if u.ID, err = result.LastInsertId(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO ledgers (username, total_income, total_expense) VALUES (?, 0, 0)",
			username,
		); err != nil {
			return fmt.Errorf("insert ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// GetLedger loads the ledger of username.
func (db *DB) GetLedger(ctx context.Context, username string) (*ledger.Ledger, error) {
	l := ledger.New(username)

	row := db.conn.QueryRowContext(ctx,
		"SELECT total_income, total_expense FROM ledgers WHERE username = ?",
		username,
	)
	if err := row.Scan(&l.TotalIncome, &l.TotalExpense); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT category, balance FROM ledger_categories WHERE username = ?",
		username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var balance float64
		if err := rows.Scan(&category, &balance); err != nil {
			return nil, err
		}
		l.Categories[category] = balance
	}
	return l, rows.Err()
}

// SaveLedger persists totals and category balances of l.
func (db *DB) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return writeLedger(ctx, tx, l)
	})
}

func writeLedger(ctx context.Context, tx *sql.Tx, l *ledger.Ledger) error {
	result, err := tx.ExecContext(ctx,
		"UPDATE ledgers SET total_income = ?, total_expense = ? WHERE username = ?",
		l.TotalIncome, l.TotalExpense, l.Username,
	)
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return models.ErrNotFound
	}

	for category, balance := range l.Categories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_categories (username, category, balance) VALUES (?, ?, ?)
			ON CONFLICT (username, category) DO UPDATE SET balance = excluded.balance
		`, l.Username, category, balance); err != nil {
			return fmt.Errorf("upsert category %q: %w", category, err)
		}
	}
	return nil
}

// RecordTransaction stores t and the ledger it produced in one transaction.
func (db *DB) RecordTransaction(ctx context.Context, t *models.Transaction, l *ledger.Ledger) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO transactions (id, username, description, amount, type, category, date) VALUES (?, ?, ?, ?, ?, ?, ?)",
			t.ID, t.Username, t.Description, t.Amount, string(t.Type), t.Category, t.Date.UTC().Format(dateLayout),
		); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return writeLedger(ctx, tx, l)
	})
}

// ListTransactions retrieves all transactions of username, most recent first.
func (db *DB) ListTransactions(ctx context.Context, username string) ([]models.Transaction, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, username, description, amount, type, category, date FROM transactions WHERE username = ? ORDER BY date DESC, rowid DESC",
		username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		var typ, date string
		if err := rows.Scan(&t.ID, &t.Username, &t.Description, &t.Amount, &typ, &t.Category, &date); err != nil {
			return nil, err
		}
		t.Type = models.TransactionType(typ)
		if t.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("parse date of transaction %s: %w", t.ID, err)
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

// GetProfile retrieves the profile of username.
func (db *DB) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	return getProfile(ctx, db.conn, username)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getProfile(ctx context.Context, q queryRower, username string) (*models.Profile, error) {
	row := q.QueryRowContext(ctx,
		"SELECT username, name, email, profile_pic, bio FROM profiles WHERE username = ?",
		username,
	)

	var p models.Profile
	if err := row.Scan(&p.Username, &p.Name, &p.Email, &p.ProfilePic, &p.Bio); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateProfile applies update to the profile of username, creating it if absent.
func (db *DB) UpdateProfile(ctx context.Context, username string, update models.ProfileUpdate) (*models.Profile, error) {
	var p *models.Profile
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = getProfile(ctx, tx, username)
		if errors.Is(err, models.ErrNotFound) {
			p = &models.Profile{Username: username}
		} else if err != nil {
			return err
		}

		update.ApplyTo(p)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO profiles (username, name, email, profile_pic, bio, updated_at) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (username) DO UPDATE SET
				name = excluded.name,
				email = excluded.email,
				profile_pic = excluded.profile_pic,
				bio = excluded.bio,
				updated_at = excluded.updated_at
		`, p.Username, p.Name, p.Email, p.ProfilePic, p.Bio, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
