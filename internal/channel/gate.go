package channel

import (
	"errors"
	"log/slog"

	"github.com/kioskops/fleet-hub/internal/auth"
)

var (
	ErrTokenMissing = errors.New("authentication error: token missing")
	ErrTokenInvalid = errors.New("authentication error: invalid token")
)

// TokenVerifier validates a bearer credential and extracts identity claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Gate authenticates every incoming connection for one channel before any
// application logic runs for it. Missing and invalid credentials are rejected
// with distinct errors so the two show apart in logs.
type Gate struct {
	namespace string
	verifier  TokenVerifier
}

func newGate(namespace string, verifier TokenVerifier) *Gate {
	return &Gate{namespace: namespace, verifier: verifier}
}

func (g *Gate) Authenticate(credential string) (*auth.Claims, error) {
	if credential == "" {
		slog.Warn("Connection missing auth token", "namespace", g.namespace)
		return nil, ErrTokenMissing
	}

	claims, err := g.verifier.Verify(credential)
	if err != nil {
		slog.Warn("Token verification failed", "namespace", g.namespace, "error", err)
		return nil, ErrTokenInvalid
	}

	slog.Debug("Connection authenticated",
		"namespace", g.namespace,
		"user_id", claims.UserID,
		"role", claims.Role)
	return claims, nil
}
