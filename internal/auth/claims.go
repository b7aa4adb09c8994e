package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo는 서명 검증 없이 읽은 JWT 클레임. 인증 판단에는 쓰지 않는다
type TokenInfo struct {
	Username  string
	UserID    string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

func PeekClaims(token string) (*TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	info := &TokenInfo{}
	if username, ok := claims["username"].(string); ok {
		info.Username = username
	} else if sub, err := claims.GetSubject(); err == nil {
		info.Username = sub
	}

	switch id := claims["user_id"].(type) {
	case string:
		info.UserID = id
	case float64:
		info.UserID = strconv.FormatFloat(id, 'f', -1, 64)
	}

	if tokenType, ok := claims["token_type"].(string); ok {
		info.Type = tokenType
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
