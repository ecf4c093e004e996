package late

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/util"
)

// PostRequest is a normalized publish request for one platform.
type PostRequest struct {
	Platform  string   `json:"platform"`
	Content   string   `json:"content"`
	MediaURLs []string `json:"media_urls,omitempty"`
	AccountID string   `json:"account_id,omitempty"`
}

// PostResult is the provider's acknowledgement of a publish.
type PostResult struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Platform string `json:"platform"`
}

// Publish sends one post through the provider. Like Accounts, an
// unauthorized response maps to ErrTokenInvalid so the caller can run the
// one reactive refresh.
func (m *Manager) Publish(ctx context.Context, accessToken string, req PostRequest) (*PostResult, error) {
	payload := map[string]any{
		"platforms": []map[string]string{{"platform": req.Platform, "accountId": req.AccountID}},
		"content":   req.Content,
	}
	if len(req.MediaURLs) > 0 {
		items := make([]map[string]string, 0, len(req.MediaURLs))
		for _, u := range req.MediaURLs {
			items = append(items, map[string]string{"url": u})
		}
		payload["mediaItems"] = items
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode post request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Late.APIBaseURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, apierr.Newf(apierr.KindUpstreamUnavailable, "Provider unreachable: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrTokenInvalid
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apierr.Newf(apierr.KindUpstreamUnavailable,
			"Provider error: %d %s", resp.StatusCode, util.TruncateBytes(respBody))
	}

	result := &PostResult{Platform: req.Platform, Status: "published"}
	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &parsed); err == nil {
		if parsed.ID != "" {
			result.ID = parsed.ID
		}
		if parsed.Status != "" {
			result.Status = parsed.Status
		}
	}
	return result, nil
}
