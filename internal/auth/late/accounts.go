package late

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/db/models"
	"github.com/buzzposter/buzzposter/internal/util"
)

// ErrTokenInvalid marks a provider call the stored access token could not
// authorize; callers get exactly one reactive refresh before giving up.
var ErrTokenInvalid = errors.New("access token rejected by provider")

// Account is one connected social account as reported by the provider.
type Account struct {
	Platform string `json:"platform"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Status describes a tenant's provider connection.
type Status struct {
	Connected bool      `json:"connected"`
	Accounts  []Account `json:"accounts"`
	Error     string    `json:"error,omitempty"`
}

// Accounts lists the connected social accounts for accessToken. The endpoint
// doubles as token validation: an unauthorized response maps to
// ErrTokenInvalid, everything else non-2xx to UpstreamUnavailable.
func (m *Manager) Accounts(ctx context.Context, accessToken string) ([]Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.Late.APIBaseURL+"/accounts", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, apierr.Newf(apierr.KindUpstreamUnavailable, "Provider unreachable: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrTokenInvalid
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apierr.Newf(apierr.KindUpstreamUnavailable,
			"Provider error: %d %s", resp.StatusCode, util.TruncateBytes(body))
	}

	return parseAccounts(body)
}

// parseAccounts accepts either a bare JSON list or a {"data": [...]} envelope.
func parseAccounts(body []byte) ([]Account, error) {
	var envelope struct {
		Data []Account `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}

	var list []Account
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	return nil, apierr.New(apierr.KindUpstreamUnavailable, "Malformed accounts response")
}

// ConnectionStatus reports whether the tenant's provider connection is live
// and which accounts it covers. An unauthorized access token gets exactly one
// reactive refresh; if the refresh token is dead too, the credential is
// cleared and the tenant is reported disconnected.
func (m *Manager) ConnectionStatus(ctx context.Context, user *models.User) (*Status, error) {
	if user.LateAccessToken == "" {
		return &Status{Connected: false, Accounts: []Account{}}, nil
	}

	accounts, err := m.Accounts(ctx, user.LateAccessToken)
	if err == nil {
		return &Status{Connected: true, Accounts: accounts}, nil
	}
	if !errors.Is(err, ErrTokenInvalid) {
		return nil, err
	}

	log.Printf("⚠️ Stored token for %s rejected, attempting refresh", user.Email)
	token, rerr := m.RefreshNow(ctx, user)
	if rerr != nil {
		if apierr.IsKind(rerr, apierr.KindReconnectRequired) {
			return &Status{
				Connected: false,
				Accounts:  []Account{},
				Error:     "Token expired, please reconnect",
			}, nil
		}
		return nil, rerr
	}

	accounts, err = m.Accounts(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			// Fresh token rejected as well; do not loop, give up plainly.
			m.clearBestEffort(ctx, user)
			return &Status{
				Connected: false,
				Accounts:  []Account{},
				Error:     "Token invalid, please reconnect",
			}, nil
		}
		return nil, err
	}
	return &Status{Connected: true, Accounts: accounts}, nil
}
