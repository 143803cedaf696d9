package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmehra2102/cart-order-service/internal/order/application"
)

var ErrInvalidClaims = errors.New("token is missing required claims")

// Claims mirrors the tokens issued by the user service: the subject is the
// user's email and userId may arrive as a number or a string.
type Claims struct {
	Role   string `json:"role"`
	UserID any    `json:"userId"`
	jwt.RegisteredClaims
}

type JWTGateway struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTGateway(secret string) *JWTGateway {
	return &JWTGateway{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

func (g *JWTGateway) Validate(_ context.Context, token string) (application.AuthContext, error) {
	var claims Claims
	_, err := g.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	})
	if err != nil {
		return application.AuthContext{}, err
	}

	userID, err := parseUserID(claims.UserID)
	if err != nil {
		return application.AuthContext{}, err
	}
	if claims.Subject == "" || claims.Role == "" {
		return application.AuthContext{}, ErrInvalidClaims
	}

	ac := application.AuthContext{UserID: userID, Email: claims.Subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		ac.ExpiresAt = claims.ExpiresAt.Time
	}
	return ac, nil
}

func parseUserID(v any) (int64, error) {
	switch id := v.(type) {
	case float64:
		if id > 0 && id == float64(int64(id)) {
			return int64(id), nil
		}
	case string:
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: userId %v", ErrInvalidClaims, v)
}

// Issue signs a token for the given identity. The order service never issues
// tokens itself; tests and local tooling do.
func (g *JWTGateway) Issue(userID int64, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:   role,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}
