// Package service implements the finance tracker operations on top of a
// record store: registration and login, transaction submission with budget
// enforcement, reports, budgets and profiles.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/events"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/models"

	"github.com/google/uuid"
)

const maxUsernameLength = 64

// Store is the persistence the service needs. RecordTransaction must write
// the journal entry and the ledger atomically.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetLedger(ctx context.Context, username string) (*ledger.Ledger, error)
	SaveLedger(ctx context.Context, l *ledger.Ledger) error
	RecordTransaction(ctx context.Context, t *models.Transaction, l *ledger.Ledger) error
	ListTransactions(ctx context.Context, username string) ([]models.Transaction, error)
	GetProfile(ctx context.Context, username string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, username string, update models.ProfileUpdate) (*models.Profile, error)
}

// PasswordHasher is a one-way hash with verification.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenIssuer issues and verifies expiring identity assertions.
type TokenIssuer interface {
	Issue(username string, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (*auth.Claims, error)
}

// Publisher receives committed domain events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Deps configures a Service. Publisher and Logger are optional.
type Deps struct {
	Store     Store
	Hasher    PasswordHasher
	Tokens    TokenIssuer
	TokenTTL  time.Duration
	Publisher Publisher
	Logger    *slog.Logger
}

// Service orchestrates the core operations.
type Service struct {
	store     Store
	hasher    PasswordHasher
	tokens    TokenIssuer
	tokenTTL  time.Duration
	publisher Publisher
	logger    *slog.Logger
	locks     *userLocks

	now   func() time.Time
	newID func() string

	// dummyHash is verified against when the user does not exist so that
	// failed logins cost the same either way.
	dummyHash func() string
}

// New creates a Service from deps.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := deps.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &Service{
		store:     deps.Store,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		tokenTTL:  ttl,
		publisher: deps.Publisher,
		logger:    logger,
		locks:     newUserLocks(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	s.dummyHash = sync.OnceValue(func() string {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			return ""
		}
		return h
	})
	return s
}

// LoginResult carries an issued session token.
type LoginResult struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register creates a user and its empty ledger.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationError("username and password are required")
	}
	if len(username) > maxUsernameLength {
		return nil, validationError("username must be at most %d characters", maxUsernameLength)
	}
	if len(password) > auth.MaxPasswordLength {
		return nil, validationError("password must be at most %d bytes", auth.MaxPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, hash)
	if err != nil {
		if errors.Is(err, models.ErrUserExists) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", "username", username)
	return user, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationError("username and password are required")
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("load user: %w", err)
		}
		s.hasher.Verify(password, s.dummyHash())
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.Username, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Username: user.Username, Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to a username.
func (s *Service) Authenticate(token string) (string, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

// loadLedger fetches the ledger of a registered user. A missing ledger means
// provisioning went wrong.
func (s *Service) loadLedger(ctx context.Context, username string) (*ledger.Ledger, error) {
	l, err := s.store.GetLedger(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.ErrorContext(ctx, "Ledger missing for user", "username", username)
			return nil, fmt.Errorf("%w: ledger for %s", ErrNotFound, username)
		}
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

// AddTransaction validates in, checks the budget, and records the entry
// together with its ledger update. Rejected submissions leave no trace.
func (s *Service) AddTransaction(ctx context.Context, username string, in TransactionInput) (*models.Transaction, error) {
	t, err := in.validate(username, s.now())
	if err != nil {
		return nil, err
	}

	balance, err := s.recordTransaction(ctx, t)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Transaction recorded",
		"username", username,
		"id", t.ID,
		"type", t.Type,
		"category", t.Category,
		"amount", t.Amount)

	s.publish(ctx, events.TransactionRecorded{
		Transaction:     *t,
		CategoryBalance: balance,
		Timestamp:       s.now(),
	})
	return t, nil
}

// recordTransaction runs the check and the write under the user's lock and
// returns the resulting category balance.
func (s *Service) recordTransaction(ctx context.Context, t *models.Transaction) (float64, error) {
	release, err := s.locks.acquire(ctx, t.Username)
	if err != nil {
		return 0, err
	}
	defer release()

	l, err := s.loadLedger(ctx, t.Username)
	if err != nil {
		return 0, err
	}

	if err := l.CheckExpense(t.Category, t.Type, t.Amount); err != nil {
		s.logger.InfoContext(ctx, "Transaction rejected",
			"username", t.Username,
			"category", t.Category,
			"amount", t.Amount,
			"error", err)
		return 0, err
	}
	if err := l.CheckRange(t.Category, t.Type, t.Amount); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	t.ID = s.newID()
	l.Apply(t.Category, t.Type, t.Amount)
	if err := s.store.RecordTransaction(ctx, t, l); err != nil {
		return 0, fmt.Errorf("record transaction: %w", err)
	}
	return l.Categories[t.Category], nil
}

// ListTransactions returns every entry of username, most recent first.
func (s *Service) ListTransactions(ctx context.Context, username string) ([]models.Transaction, error) {
	list, err := s.store.ListTransactions(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return list, nil
}

// Report returns totals, net balance and category balances of username.
func (s *Service) Report(ctx context.Context, username string) (ledger.Report, error) {
	l, err := s.loadLedger(ctx, username)
	if err != nil {
		return ledger.Report{}, err
	}
	return l.Report(), nil
}

// SetBudget overwrites the balance of category with limit and returns the
// updated category map.
func (s *Service) SetBudget(ctx context.Context, username, category string, limit float64) (map[string]float64, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, validationError("category is required")
	}
	if math.IsNaN(limit) || math.IsInf(limit, 0) {
		return nil, validationError("limit must be a finite number")
	}

	summary, err := s.saveBudget(ctx, username, category, limit)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Budget set", "username", username, "category", category, "limit", limit)
	s.publish(ctx, events.BudgetSet{Username: username, Category: category, Limit: limit, Timestamp: s.now()})
	return summary, nil
}

func (s *Service) saveBudget(ctx context.Context, username, category string, limit float64) (map[string]float64, error) {
	release, err := s.locks.acquire(ctx, username)
	if err != nil {
		return nil, err
	}
	defer release()

	l, err := s.loadLedger(ctx, username)
	if err != nil {
		return nil, err
	}
	l.SetBudget(category, limit)
	if err := s.store.SaveLedger(ctx, l); err != nil {
		return nil, fmt.Errorf("save ledger: %w", err)
	}
	return l.Budget(), nil
}

// GetBudget returns the raw category balances of username.
func (s *Service) GetBudget(ctx context.Context, username string) (map[string]float64, error) {
	l, err := s.loadLedger(ctx, username)
	if err != nil {
		return nil, err
	}
	return l.Budget(), nil
}

// GetProfile returns the profile of username, or an empty one if none was saved.
func (s *Service) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		return &models.Profile{Username: username}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// UpdateProfile applies the fields present in update.
func (s *Service) UpdateProfile(ctx context.Context, username string, update models.ProfileUpdate) (*models.Profile, error) {
	p, err := s.store.UpdateProfile(ctx, username, update)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "routing_key", e.RoutingKey(), "error", err)
	}
}
