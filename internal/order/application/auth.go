package application

import (
	"context"
	"strings"
)

type Authenticator struct {
	gateway AuthGateway
}

func NewAuthenticator(gateway AuthGateway) Authenticator {
	return Authenticator{gateway: gateway}
}

// Authenticate resolves the Authorization header value into an AuthContext.
func (a Authenticator) Authenticate(ctx context.Context, header string) (AuthContext, error) {
	token, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return AuthContext{}, newError(KindAuth, nil, "Missing or invalid Authorization header")
	}
	ac, err := a.gateway.Validate(ctx, token)
	if err != nil {
		return AuthContext{}, newError(KindAuth, err, "Invalid or expired token")
	}
	return ac, nil
}

func (a Authenticator) RequireEndUser(ctx context.Context, header, denied string) (AuthContext, error) {
	ac, err := a.Authenticate(ctx, header)
	if err != nil {
		return AuthContext{}, err
	}
	if !ac.IsEndUser() {
		return AuthContext{}, newError(KindAuthorization, nil, "%s", denied)
	}
	return ac, nil
}

func requireOwner(ac AuthContext, userID int64) error {
	if userID != 0 && userID != ac.UserID {
		return newError(KindAuthorization, nil, "Access denied")
	}
	return nil
}
