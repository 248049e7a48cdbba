package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/handlers"
	"finance-tracker/internal/logger"
	"finance-tracker/internal/service"
	"finance-tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create database")
	t.Cleanup(func() { db.Close() })

	issuer, err := auth.NewIssuer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	return service.New(service.Deps{
		Store:    db,
		Hasher:   auth.NewHasher(bcrypt.MinCost),
		Tokens:   issuer,
		TokenTTL: time.Hour,
	})
}

func TestSetupRouter(t *testing.T) {
	mux := setupRouter(handlers.NewHandlers(newTestService(t), nil), logger.New(logger.Config{Output: io.Discard}))

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{
			name:       "Health check",
			method:     "GET",
			path:       "/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Transactions require auth",
			method:     "GET",
			path:       "/api/transactions",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Login with unknown user",
			method:     "POST",
			path:       "/api/auth/login",
			body:       `{"username":"nobody","password":"x"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Unknown endpoint",
			method:     "GET",
			path:       "/expenses",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = http.NoBody
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code,
				"%s %s returned unexpected status", tt.method, tt.path)
		})
	}
}

func TestBootstrapAdmin(t *testing.T) {
	svc := newTestService(t)
	log := logger.New(logger.Config{Output: io.Discard})
	cfg := &config.Config{AdminUser: "admin", AdminPassword: "secret"}
	ctx := context.Background()

	require.NoError(t, bootstrapAdmin(ctx, svc, cfg, log))
	// A second start finds the account already present.
	require.NoError(t, bootstrapAdmin(ctx, svc, cfg, log))

	res, err := svc.Login(ctx, "admin", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestBootstrapAdminDisabled(t *testing.T) {
	svc := newTestService(t)
	log := logger.New(logger.Config{Output: io.Discard})

	require.NoError(t, bootstrapAdmin(context.Background(), svc, &config.Config{}, log))

	_, err := svc.Login(context.Background(), "admin", "secret")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}
