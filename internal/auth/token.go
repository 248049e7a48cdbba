package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
)

const issuerName = "finance-tracker"

// MinSecretLength is the shortest HMAC key the issuer accepts.
const MinSecretLength = 32

var (
	// ErrMissingToken means no bearer credential was presented.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken means the credential is malformed, badly signed or expired.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the identity carried by a session token.
type Claims struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"-"`
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	signer jose.Signer
	now    func() time.Time
}

// NewIssuer creates an Issuer keyed by secret.
func NewIssuer(secret []byte) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("secret must be at least %d bytes", MinSecretLength)
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	return &Issuer{secret: secret, signer: signer, now: time.Now}, nil
}

// Issue returns a token for username that expires after ttl.
func (i *Issuer) Issue(username string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(ttl)
	std := jwt.Claims{
		Issuer:   issuerName,
		Subject:  username,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(expiresAt),
	}
	custom := struct {
		Username string `json:"username"`
	}{Username: username}

	raw, err := jwt.Signed(i.signer).Claims(std).Claims(custom).CompactSerialize()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return raw, expiresAt, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	tok, err := jwt.ParseSigned(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(tok.Headers) != 1 || tok.Headers[0].Algorithm != string(jose.HS256) {
		return nil, fmt.Errorf("%w: unexpected algorithm", ErrInvalidToken)
	}

	var std jwt.Claims
	var custom struct {
		Username string `json:"username"`
	}
	if err := tok.Claims(i.secret, &std, &custom); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := std.ValidateWithLeeway(jwt.Expected{Issuer: issuerName, Time: i.now()}, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if custom.Username == "" || custom.Username != std.Subject {
		return nil, fmt.Errorf("%w: missing username claim", ErrInvalidToken)
	}

	return &Claims{Username: custom.Username, ExpiresAt: std.Expiry.Time()}, nil
}
