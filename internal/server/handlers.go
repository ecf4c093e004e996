package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/auth/apikey"
	"github.com/buzzposter/buzzposter/internal/auth/late"
	"github.com/buzzposter/buzzposter/internal/db/models"
	"github.com/buzzposter/buzzposter/internal/version"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignupHandler creates a new free-tier account.
// Body: {"email": "user@example.com"}; returns {"api_key": "bp_...", ...}.
func SignupHandler(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		email := strings.TrimSpace(body.Email)
		if email == "" || !strings.Contains(email, "@") {
			httpError(w, http.StatusBadRequest, "Email required")
			return
		}

		var existing models.User
		err := db.WithContext(r.Context()).Where("email = ?", email).First(&existing).Error
		if err == nil {
			httpError(w, http.StatusBadRequest, "Email already registered")
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			httpError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		key, err := apikey.Generate()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		user := models.User{
			ID:     uuid.New().String(),
			Email:  email,
			APIKey: key,
			Tier:   models.TierFree,
		}
		if err := db.WithContext(r.Context()).Create(&user).Error; err != nil {
			httpError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		log.Printf("✅ New signup: %s", email)

		writeJSON(w, http.StatusOK, map[string]string{
			"api_key": key,
			"tier":    models.TierFree,
			"email":   email,
			"message": "Account created successfully",
		})
	}
}

// ConnectHandler initiates the provider OAuth flow: it validates the API key,
// issues a fresh single-use state and redirects to the provider's consent
// page. The state, not the API key, rides the OAuth state parameter.
func ConnectHandler(d Deps) http.HandlerFunc {
	oauthCfg := late.OAuthConfig(d.Cfg)
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Cfg.Late.ClientID == "" || d.Cfg.Late.ClientSecret == "" {
			htmlError(w, http.StatusServiceUnavailable, "Social connect is not configured on this server")
			return
		}

		user, err := d.Auth.Authenticate(r.Context(), r.URL.Query().Get("api_key"))
		if err != nil {
			apierr.WriteJSON(w, err)
			return
		}

		state, err := late.IssueState(r.Context(), d.DB, user)
		if err != nil {
			apierr.WriteJSON(w, err)
			return
		}

		http.Redirect(w, r, oauthCfg.AuthCodeURL(state), http.StatusFound)
	}
}

// CallbackHandler finishes the provider OAuth flow: it resolves the one-time
// state back to a tenant, exchanges the code and stores the token pair.
func CallbackHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			htmlError(w, http.StatusBadRequest, "Missing authorization code")
			return
		}

		key, err := late.ResolveState(r.Context(), d.DB, r.URL.Query().Get("state"))
		if err != nil {
			if e, ok := apierr.As(err); ok {
				htmlError(w, e.HTTPStatus(), e.Message)
				return
			}
			htmlError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		user, err := d.Auth.Authenticate(r.Context(), key)
		if err != nil {
			apierr.WriteJSON(w, err)
			return
		}

		tok, err := d.Tokens.ExchangeCode(r.Context(), code)
		if err != nil {
			log.Printf("❌ Code exchange failed for %s: %v", user.Email, err)
			htmlError(w, http.StatusBadGateway, "Failed to exchange authorization code")
			return
		}
		if err := d.Tokens.SaveTokens(r.Context(), user, tok); err != nil {
			htmlError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		log.Printf("🔗 Social account connected for %s", user.Email)

		http.Redirect(w, r, d.Cfg.Server.BaseURL+"/onboarding?api_key="+key, http.StatusFound)
	}
}

// StatusHandler reports the provider connection status as JSON.
func StatusHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := d.Auth.Authenticate(r.Context(), r.URL.Query().Get("api_key"))
		if err != nil {
			apierr.WriteJSON(w, err)
			return
		}

		status, err := d.Tokens.ConnectionStatus(r.Context(), user)
		if err != nil {
			apierr.WriteJSON(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// HealthHandler reports liveness and the running version.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func htmlError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<h1>Error</h1><p>%s</p>", message)
}
