package late

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/config"
	"github.com/buzzposter/buzzposter/internal/db/models"
	"github.com/buzzposter/buzzposter/internal/metrics"
	"github.com/buzzposter/buzzposter/internal/util"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	// RefreshMargin is how early to refresh before expiration.
	RefreshMargin = 5 * time.Minute
	// defaultTokenTTL is assumed when the provider omits expires_in.
	defaultTokenTTL = time.Hour

	reconnectMessage = "Social account connection required. Open the connect URL to authorize BuzzPoster."
)

// ErrTokenRejected marks a token request the provider refused (invalid code
// or dead refresh token), as opposed to the provider being unreachable.
var ErrTokenRejected = errors.New("provider rejected credentials")

// Manager owns the stored provider credential of each tenant: it exchanges
// authorization codes, refreshes expiring or invalidated tokens, and clears
// credentials that can no longer be refreshed so status checks report
// disconnected plainly instead of retrying a dead credential.
type Manager struct {
	db         *gorm.DB
	cfg        *config.Config
	httpClient *http.Client
}

func NewManager(db *gorm.DB, cfg *config.Config) *Manager {
	return &Manager{
		db:  db,
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Late.Timeout(),
		},
	}
}

// ConnectURL returns the connect-initiation URL for the user, embedded in
// ReconnectRequired payloads so callers can self-service recovery.
func (m *Manager) ConnectURL(user *models.User) string {
	return m.cfg.Server.BaseURL + "/auth/late/connect?api_key=" + url.QueryEscape(user.APIKey)
}

// ExchangeCode trades an authorization code for a token pair.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return m.tokenRequest(ctx, map[string]string{
		"client_id":     m.cfg.Late.ClientID,
		"client_secret": m.cfg.Late.ClientSecret,
		"code":          code,
		"grant_type":    "authorization_code",
		"redirect_uri":  m.cfg.Server.BaseURL + "/auth/late/callback",
	})
}

// Refresh trades a refresh token for a new token pair.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	tok, err := m.tokenRequest(ctx, map[string]string{
		"client_id":     m.cfg.Late.ClientID,
		"client_secret": m.cfg.Late.ClientSecret,
		"refresh_token": refreshToken,
		"grant_type":    "refresh_token",
	})
	switch {
	case err == nil:
		metrics.TokenRefreshesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrTokenRejected):
		metrics.TokenRefreshesTotal.WithLabelValues("rejected").Inc()
	default:
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
	}
	return tok, err
}

// tokenRequest posts a JSON token request to the provider. The Late token
// endpoint takes a JSON body, not the form encoding of RFC 6749.
func (m *Manager) tokenRequest(ctx context.Context, payload map[string]string) (*oauth2.Token, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Late.TokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, apierr.Newf(apierr.KindUpstreamUnavailable, "Token endpoint unreachable: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		log.Printf("❌ Provider rejected token request: %d %s", resp.StatusCode, util.TruncateBytes(respBody))
		return nil, fmt.Errorf("%w: status %d", ErrTokenRejected, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.Newf(apierr.KindUpstreamUnavailable,
			"Token endpoint error: %d %s", resp.StatusCode, util.TruncateBytes(respBody))
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, apierr.Newf(apierr.KindUpstreamUnavailable, "Malformed token response: %v", err)
	}
	if tr.AccessToken == "" {
		return nil, apierr.New(apierr.KindUpstreamUnavailable, "Token response missing access_token")
	}

	ttl := defaultTokenTTL
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}
	return &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Expiry:       time.Now().Add(ttl),
	}, nil
}

// SaveTokens persists the token pair and expiry in a single write and updates
// user in place. A rotated refresh token replaces the stored one; an absent
// refresh token keeps it.
func (m *Manager) SaveTokens(ctx context.Context, user *models.User, tok *oauth2.Token) error {
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = user.LateRefreshToken
	} else if refresh != user.LateRefreshToken {
		log.Printf("🔄 Rotating refresh token for %s", user.Email)
	}

	err := m.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"late_access_token":  tok.AccessToken,
			"late_refresh_token": refresh,
			"late_token_expiry":  tok.Expiry,
		}).Error
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}

	user.LateAccessToken = tok.AccessToken
	user.LateRefreshToken = refresh
	user.LateTokenExpiry = tok.Expiry
	return nil
}

// ClearTokens wipes the stored credential so future checks report
// disconnected.
func (m *Manager) ClearTokens(ctx context.Context, user *models.User) error {
	err := m.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"late_access_token":  "",
			"late_refresh_token": "",
			"late_token_expiry":  time.Time{},
		}).Error
	if err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}

	user.LateAccessToken = ""
	user.LateRefreshToken = ""
	user.LateTokenExpiry = time.Time{}
	return nil
}

// LiveToken returns an access token usable at the moment of return,
// refreshing proactively when the stored one expires within RefreshMargin.
// A dead credential is cleared and reported as ReconnectRequired; a provider
// outage is surfaced as UpstreamUnavailable with the credential kept.
func (m *Manager) LiveToken(ctx context.Context, user *models.User) (string, error) {
	if user.LateAccessToken == "" {
		return "", apierr.Reconnect(reconnectMessage, m.ConnectURL(user))
	}
	if time.Until(user.LateTokenExpiry) > RefreshMargin {
		return user.LateAccessToken, nil
	}

	log.Printf("⚠️ Token for %s is expired/expiring, refreshing...", user.Email)
	return m.RefreshNow(ctx, user)
}

// RefreshNow forces one refresh exchange and persists the result. It is the
// single shared path for proactive refresh and for the one reactive retry
// after a downstream 401.
func (m *Manager) RefreshNow(ctx context.Context, user *models.User) (string, error) {
	if user.LateRefreshToken == "" {
		m.clearBestEffort(ctx, user)
		return "", apierr.Reconnect(reconnectMessage, m.ConnectURL(user))
	}

	tok, err := m.Refresh(ctx, user.LateRefreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenRejected) {
			// Refresh token is dead too; clear so the tenant does not look
			// connected. A clear failure is logged, never masks the outcome.
			m.clearBestEffort(ctx, user)
			return "", apierr.Reconnect(reconnectMessage, m.ConnectURL(user))
		}
		return "", err
	}

	if err := m.SaveTokens(ctx, user, tok); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (m *Manager) clearBestEffort(ctx context.Context, user *models.User) {
	if err := m.ClearTokens(ctx, user); err != nil {
		log.Printf("⚠️ Failed to clear tokens for %s: %v", user.Email, err)
	}
}
