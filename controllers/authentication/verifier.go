package authentication

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"golang.org/x/oauth2"
)

// ErrUnauthenticated covers every token failure: missing header,
// malformed value, expired or revoked token, provider rejection. The
// handler surfaces all of them as a single 401.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is what a verified bearer token resolves to.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	Role        string
}

// Verifier exchanges a bearer credential for a verified identity. Every
// request re-validates; there is no token cache.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// BearerToken extracts the credential from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrUnauthenticated
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return "", ErrUnauthenticated
	}
	return token, nil
}

// GoogleVerifier resolves tokens against Google's userinfo endpoint.
type GoogleVerifier struct{}

func (GoogleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	srv, err := goauth.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}

	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil || info.Id == "" {
		return Identity{}, ErrUnauthenticated
	}

	return Identity{
		UserID:      info.Id,
		Email:       info.Email,
		DisplayName: info.Name,
		Role:        "user",
	}, nil
}
