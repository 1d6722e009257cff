package middleware

import (
	"context"
	"net/http"
	"strings"
)

// TokenHeader carries a per-request Replicate credential.
const TokenHeader = "X-Replicate-Token"

type credentialContextKey struct{}

// CredentialSource says where a request's token came from.
type CredentialSource string

const (
	CredentialNone   CredentialSource = ""
	CredentialHeader CredentialSource = "header"
	CredentialServer CredentialSource = "server"
)

type credential struct {
	token  string
	source CredentialSource
}

// Credential resolves the token for each request: the header wins, then the
// server-held token. An empty result is left for handlers to reject.
func Credential(serverToken string) func(http.Handler) http.Handler {
	serverToken = strings.TrimSpace(serverToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, source := ResolveCredential(r, serverToken)
			ctx := context.WithValue(r.Context(), credentialContextKey{}, credential{token: token, source: source})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResolveCredential applies the header-then-server precedence.
func ResolveCredential(r *http.Request, serverToken string) (string, CredentialSource) {
	if r != nil {
		if v := strings.TrimSpace(r.Header.Get(TokenHeader)); v != "" {
			return v, CredentialHeader
		}
	}
	if v := strings.TrimSpace(serverToken); v != "" {
		return v, CredentialServer
	}
	return "", CredentialNone
}

// CredentialFromContext returns the resolved token and its source.
func CredentialFromContext(ctx context.Context) (string, CredentialSource) {
	if v, ok := ctx.Value(credentialContextKey{}).(credential); ok {
		return v.token, v.source
	}
	return "", CredentialNone
}
