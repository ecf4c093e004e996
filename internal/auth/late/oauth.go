// Package late implements the OAuth credential lifecycle against the Late
// social-posting provider: CSRF state issuance/resolution, code exchange,
// proactive and reactive token refresh, and connection status.
package late

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/config"
	"github.com/buzzposter/buzzposter/internal/db/models"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// OAuthConfig builds the provider OAuth2 config from cfg.
func OAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.Late.ClientID,
		ClientSecret: cfg.Late.ClientSecret,
		RedirectURL:  cfg.Server.BaseURL + "/auth/late/callback",
		Scopes:       []string{"read", "write"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.Late.AuthorizeURL,
			TokenURL: cfg.Late.TokenURL,
		},
	}
}

// IssueState generates a 256-bit random state token, persists it on the user
// record and returns it. An unresolved earlier state is overwritten.
func IssueState(ctx context.Context, db *gorm.DB, user *models.User) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	err := db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("oauth_state", state).Error
	if err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	user.OAuthState = state
	return state, nil
}

// ResolveState finds the user bound to state, clears the state and returns
// the user's API key. The clear is a conditional update checked by affected
// rows, so two concurrent resolutions of the same state cannot both succeed.
func ResolveState(ctx context.Context, db *gorm.DB, state string) (string, error) {
	if state == "" {
		return "", apierr.New(apierr.KindInvalidState, "Missing state parameter")
	}

	var user models.User
	err := db.WithContext(ctx).Where("oauth_state = ?", state).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apierr.New(apierr.KindInvalidState, "Invalid or expired state token")
		}
		return "", fmt.Errorf("look up oauth state: %w", err)
	}

	res := db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND oauth_state = ?", user.ID, state).
		Update("oauth_state", "")
	if res.Error != nil {
		return "", fmt.Errorf("clear oauth state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Another resolution consumed it first
		return "", apierr.New(apierr.KindInvalidState, "Invalid or expired state token")
	}
	return user.APIKey, nil
}
