package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the set of claims carried by both session tokens.
type Identity struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	ProfileID string `json:"profileId,omitempty"`
}

// Pair is an access/refresh token pair as returned to clients. ExpiresIn is
// the access token lifetime in seconds.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// RejectionKind tags why a token was rejected so callers can switch on it
// directly instead of matching error strings.
type RejectionKind int

const (
	KindInvalid RejectionKind = iota
	KindExpired
	KindRevoked
)

func (k RejectionKind) String() string {
	switch k {
	case KindExpired:
		return "expired"
	case KindRevoked:
		return "revoked"
	default:
		return "invalid"
	}
}

// Rejection is the tagged verification failure. All rejections surface to the
// caller as authentication failures; the kind is for metrics and audit only
// and never leaks to clients.
type Rejection struct {
	Kind RejectionKind
}

func (r *Rejection) Error() string {
	return "token rejected: " + r.Kind.String()
}

// Is lets errors.Is match rejections by kind against the package sentinels.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Kind == r.Kind
}

var (
	ErrInvalid = &Rejection{Kind: KindInvalid}
	ErrExpired = &Rejection{Kind: KindExpired}
	ErrRevoked = &Rejection{Kind: KindRevoked}
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// claims is the JWT payload for both token types.
type claims struct {
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	ProfileID string `json:"profile_id,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func (c *claims) identity() Identity {
	return Identity{
		UserID:    c.Subject,
		Email:     c.Email,
		Name:      c.Name,
		ProfileID: c.ProfileID,
	}
}
