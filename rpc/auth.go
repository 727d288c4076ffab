package rpc

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// administrative methods require a bearer token signed with the configured
// HS256 secret. When no secret is configured the admin surface is disabled
// entirely rather than left open.
var adminMethods = map[string]bool{
	"assets_register":           true,
	"assets_mint":               true,
	"assets_setActive":          true,
	"assets_setVerified":        true,
	"assets_unfreeze":           true,
	"market_setFeePolicy":       true,
	"revenue_emergencyWithdraw": true,
	"revenue_setPolicy":         true,
	"bank_mint":                 true,
	"system_pause":              true,
	"system_resume":             true,
	"system_grantRole":          true,
	"system_revokeRole":         true,
	"audit_run":                 true,
}

type authError struct {
	Code    int
	Message string
	Data    interface{}
}

func (s *Server) requireAuth(r *http.Request) *authError {
	if len(s.jwtSecret) == 0 {
		return &authError{Code: codeUnauthorized, Message: "administrative interface disabled"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &authError{Code: codeUnauthorized, Message: "bearer token required"}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return &authError{Code: codeUnauthorized, Message: "invalid token"}
	}
	if claims.ExpiresAt == nil {
		return &authError{Code: codeUnauthorized, Message: "token must carry an expiry"}
	}
	return nil
}

// IssueToken mints a short-lived HS256 bearer token for the administrative
// interface. The CLI uses it to authenticate against a node sharing the same
// secret.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("rpc: jwt secret required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strings.TrimSpace(subject),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
