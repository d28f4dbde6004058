// Package auth issues and verifies the HS256 bearer tokens that identify
// buyers and staff to the stock API.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is who a verified token speaks for.
type Identity struct {
	UserID int64
	Role   string
}

type Issuer struct {
	secret    []byte
	accessTTL time.Duration
}

func NewIssuer(secret string, accessTTL time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), accessTTL: accessTTL}
}

func (i *Issuer) Issue(userID int64, role string, now time.Time) (string, time.Time, error) {
	if userID <= 0 {
		return "", time.Time{}, errors.New("user id must be positive")
	}
	if role != RoleUser && role != RoleAdmin {
		return "", time.Time{}, errors.New("role must be USER or ADMIN")
	}
	expiresAt := now.Add(i.accessTTL)

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": role,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm and expiry and extracts the identity.
func (i *Issuer) Verify(raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	userID, err := parseUserID(claims["sub"])
	if err != nil || userID <= 0 {
		return Identity{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, Role: role}, nil
}

func parseUserID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid sub")
	}
}
