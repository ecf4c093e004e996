// Package apikey resolves bearer credentials to subscriber accounts.
package apikey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/db/models"
	"gorm.io/gorm"
)

// Prefix distinguishes BuzzPoster API keys from other credential kinds.
const Prefix = "bp_"

// Generate returns a fresh API key: "bp_" + 32 random bytes, URL-safe.
func Generate() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return Prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// Authenticator looks up tenants by API key. Read-only; it is always the
// first gate and its failure is terminal for the request.
type Authenticator struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Authenticator {
	return &Authenticator{db: db}
}

// Authenticate validates key and returns the matching user. Validation order:
// empty, wrong shape, unknown. Exact match only, no case normalization.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (*models.User, error) {
	if key == "" {
		return nil, apierr.New(apierr.KindUnauthenticated, "Missing API key")
	}
	if !strings.HasPrefix(key, Prefix) {
		return nil, apierr.New(apierr.KindUnauthenticated, "Invalid API key format")
	}

	var user models.User
	err := a.db.WithContext(ctx).Where("api_key = ?", key).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(apierr.KindUnauthenticated, "Invalid API key")
		}
		return nil, fmt.Errorf("look up api key: %w", err)
	}
	return &user, nil
}

// AuthenticateHeader extracts the bearer credential from an Authorization
// header value and authenticates it.
func (a *Authenticator) AuthenticateHeader(ctx context.Context, header string) (*models.User, error) {
	key, err := KeyFromHeader(header)
	if err != nil {
		return nil, err
	}
	return a.Authenticate(ctx, key)
}

// FromRequest authenticates the Authorization header of r.
func (a *Authenticator) FromRequest(r *http.Request) (*models.User, error) {
	return a.AuthenticateHeader(r.Context(), r.Header.Get("Authorization"))
}

// KeyFromHeader pulls the bearer token out of an Authorization header value.
func KeyFromHeader(header string) (string, error) {
	if header == "" {
		return "", apierr.New(apierr.KindUnauthenticated, "Missing Authorization header")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", apierr.New(apierr.KindUnauthenticated, "Invalid Authorization header format")
	}
	return strings.TrimPrefix(header, "Bearer "), nil
}
