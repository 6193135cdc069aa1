package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"teamboard.io/internal/ids"
	"teamboard.io/internal/obs"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
	defaultIssuer     = "teamboard"
)

// Service issues, verifies, rotates and revokes signed session tokens.
// Signing is stateless; revocation state lives in the shared blacklist.
type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	blacklist  *Blacklist
}

// Option configures Service behavior.
type Option func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) error {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = strings.TrimSpace(issuer)
		}
		return nil
	}
}

// WithAccessTTL configures the access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service signing with the given HS256 secret and
// consulting blacklist on every verification.
func NewService(secret string, blacklist *Blacklist, opts ...Option) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token: signing secret is required")
	}
	if blacklist == nil {
		return nil, errors.New("token: blacklist is required")
	}
	svc := &Service{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
		blacklist:  blacklist,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Issue signs a fresh access/refresh pair for the identity. Signing has no
// side effects; nothing is persisted until a token is revoked.
func (s *Service) Issue(ctx context.Context, identity Identity) (Pair, error) {
	if strings.TrimSpace(identity.UserID) == "" {
		return Pair{}, errors.New("token: identity requires a user id")
	}
	now := s.now().UTC()
	access, err := s.sign(identity, typeAccess, now, s.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.sign(identity, typeRefresh, now, s.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *Service) sign(identity Identity, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	c := claims{
		Email:     identity.Email,
		Name:      identity.Name,
		ProfileID: identity.ProfileID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ids.New(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// VerifyAccess checks signature, expiry and the blacklist, in that order, and
// returns the identity claims on success.
func (s *Service) VerifyAccess(ctx context.Context, raw string) (Identity, error) {
	c, err := s.verify(ctx, raw, typeAccess)
	if err != nil {
		return Identity{}, err
	}
	return c.identity(), nil
}

// VerifyRefresh applies the same three checks to a refresh token.
func (s *Service) VerifyRefresh(ctx context.Context, raw string) (Identity, error) {
	c, err := s.verify(ctx, raw, typeRefresh)
	if err != nil {
		return Identity{}, err
	}
	return c.identity(), nil
}

func (s *Service) verify(ctx context.Context, raw, wantType string) (*claims, error) {
	c, err := s.parse(raw, true)
	if err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			obs.TokenVerification(rej.Kind.String())
		}
		return nil, err
	}
	if c.TokenType != wantType {
		obs.TokenVerification(KindInvalid.String())
		return nil, ErrInvalid
	}
	revoked, err := s.blacklist.Revoked(ctx, c.ID)
	if err != nil {
		// Blacklist backend down: fail closed rather than honoring a
		// potentially revoked token.
		return nil, fmt.Errorf("token: blacklist lookup: %w", err)
	}
	if revoked {
		obs.TokenVerification(KindRevoked.String())
		return nil, ErrRevoked
	}
	obs.TokenVerification("ok")
	return c, nil
}

// parse validates the signature and, when validateClaims is set, the standard
// time claims against the injected clock.
func (s *Service) parse(raw string, validateClaims bool) (*claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalid
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	}
	if !validateClaims {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if strings.TrimSpace(c.Subject) == "" || c.ExpiresAt == nil || c.ID == "" {
		return nil, ErrInvalid
	}
	return c, nil
}

// ExtractFromRequest reads the bearer token from the Authorization header.
// There is no cookie fallback.
func ExtractFromRequest(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	const scheme = "bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(scheme):])
	if tok == "" {
		return "", false
	}
	return tok, true
}

// Revoke blacklists the token for its remaining lifetime. The signature must
// still verify; expiry is ignored because an expired token needs no entry.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	c, err := s.parse(raw, false)
	if err != nil {
		return err
	}
	remaining := c.ExpiresAt.Time.Sub(s.now())
	return s.blacklist.Revoke(ctx, c.ID, remaining)
}

// Refresh verifies the refresh token and rotates it: the old token is revoked
// with a conditional write before a new pair is minted, so of two concurrent
// calls presenting the same token exactly one succeeds and the other observes
// a revoked token.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (Pair, Identity, error) {
	c, err := s.verify(ctx, rawRefresh, typeRefresh)
	if err != nil {
		return Pair{}, Identity{}, err
	}
	remaining := c.ExpiresAt.Time.Sub(s.now())
	won, err := s.blacklist.RevokeOnce(ctx, c.ID, remaining)
	if err != nil {
		return Pair{}, Identity{}, fmt.Errorf("token: revoke rotated token: %w", err)
	}
	if !won {
		obs.TokenVerification(KindRevoked.String())
		return Pair{}, Identity{}, ErrRevoked
	}
	identity := c.identity()
	pair, err := s.Issue(ctx, identity)
	if err != nil {
		return Pair{}, Identity{}, err
	}
	return pair, identity, nil
}
