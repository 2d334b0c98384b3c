package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid signals a token whose signature or shape does not check out.
	ErrTokenInvalid = errors.New("auth: invalid token")
	// ErrTokenExpired signals a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
)

// tokenTTL is how long a minted session token stays valid.
const tokenTTL = 7 * 24 * time.Hour

// generateToken mints an HS256 session token carrying the principal id and its
// partition. Tokens are stateless; nothing is persisted.
func (s *Service) generateToken(principalID string, partition Partition) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":       principalID,
		"partition": string(partition),
		"iat":       now.Unix(),
		"exp":       now.Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// parseToken checks signature and expiry and returns the embedded identity.
// It never touches storage; the live re-lookup happens in Verify.
func (s *Service) parseToken(raw string) (string, Partition, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", ErrTokenExpired
		}
		return "", "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", ErrTokenInvalid
	}

	principalID, ok := claims["sub"].(string)
	if !ok || principalID == "" {
		return "", "", ErrTokenInvalid
	}
	partitionStr, ok := claims["partition"].(string)
	if !ok {
		return "", "", ErrTokenInvalid
	}
	partition := Partition(partitionStr)
	if !validPartition(partition) {
		return "", "", ErrTokenInvalid
	}
	return principalID, partition, nil
}
