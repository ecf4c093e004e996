// Package billing is the thin surface the billing collaborator drives: its
// only obligation toward the core is persisting the tier mutation when a
// subscription completes.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/buzzposter/buzzposter/internal/db/models"
	"gorm.io/gorm"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Billing-Signature"

// CompleteSubscription persists the tier change for the tenant identified by
// apiKey. Only paid tiers are accepted; the free tier is never set by billing.
func CompleteSubscription(ctx context.Context, db *gorm.DB, apiKey, tier string) error {
	if tier != models.TierPro && tier != models.TierBusiness {
		return fmt.Errorf("invalid tier %q", tier)
	}

	res := db.WithContext(ctx).
		Model(&models.User{}).
		Where("api_key = ?", apiKey).
		Update("tier", tier)
	if res.Error != nil {
		return fmt.Errorf("update tier: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no user for api key")
	}
	log.Printf("💰 Subscription completed, tier set to %s", tier)
	return nil
}

// WebhookHandler handles checkout-completed notifications from the billing
// collaborator. The body is authenticated with a shared-secret HMAC before
// anything is parsed.
func WebhookHandler(db *gorm.DB, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		if !verifySignature(body, r.Header.Get(SignatureHeader), secret) {
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}

		var event struct {
			APIKey string `json:"api_key"`
			Tier   string `json:"tier"`
		}
		if err := json.Unmarshal(body, &event); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if event.APIKey == "" || event.Tier == "" {
			http.Error(w, "api_key and tier required", http.StatusBadRequest)
			return
		}

		if err := CompleteSubscription(r.Context(), db, event.APIKey, event.Tier); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
