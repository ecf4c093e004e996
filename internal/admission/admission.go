// Package admission is the single entry point for every tool invocation: it
// runs the authentication, quota and entitlement gates in a fixed order and
// appends the usage record that quota counting reads back.
package admission

import (
	"context"
	"net/http"

	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/auth/apikey"
	"github.com/buzzposter/buzzposter/internal/auth/feature"
	"github.com/buzzposter/buzzposter/internal/auth/quota"
	"github.com/buzzposter/buzzposter/internal/db/models"
	"github.com/buzzposter/buzzposter/internal/metrics"
	"gorm.io/gorm"
)

// TenantContext is the authenticated tenant handed to tool handlers.
type TenantContext struct {
	User *models.User
}

// Tier is a convenience accessor for the tenant's subscription tier.
func (tc *TenantContext) Tier() string { return tc.User.Tier }

// Facade composes Authenticator → Rate Limiter → Feature Gate. Identity
// failures short-circuit before quota and feature checks run.
type Facade struct {
	auth    *apikey.Authenticator
	limiter *quota.Limiter
}

func New(db *gorm.DB) *Facade {
	return &Facade{
		auth:    apikey.New(db),
		limiter: quota.New(db),
	}
}

// Admit runs the three gates for a tool call authenticated by the raw API
// key, then consumes quota by appending one usage record. Quota is consumed
// once the call is admitted, not once the tool succeeds downstream; a tool
// body failure does not refund it. featureName "" leaves the call ungated.
func (f *Facade) Admit(ctx context.Context, key, toolName, featureName string) (*TenantContext, error) {
	user, err := f.auth.Authenticate(ctx, key)
	if err != nil {
		return nil, f.reject(err)
	}

	if err := f.limiter.Check(ctx, user); err != nil {
		return nil, f.reject(err)
	}

	if featureName != "" {
		if err := feature.Check(user.Tier, featureName); err != nil {
			return nil, f.reject(err)
		}
	}

	if err := f.limiter.Record(ctx, user, toolName); err != nil {
		return nil, err
	}

	metrics.AdmissionsTotal.WithLabelValues("admitted").Inc()
	metrics.ToolCallsTotal.WithLabelValues(toolName).Inc()
	return &TenantContext{User: user}, nil
}

// AdmitHeader is Admit for a raw Authorization header value.
func (f *Facade) AdmitHeader(ctx context.Context, authorization, toolName, featureName string) (*TenantContext, error) {
	key, err := apikey.KeyFromHeader(authorization)
	if err != nil {
		return nil, f.reject(err)
	}
	return f.Admit(ctx, key, toolName, featureName)
}

// AdmitRequest is Admit for an inbound HTTP request.
func (f *Facade) AdmitRequest(r *http.Request, toolName, featureName string) (*TenantContext, error) {
	return f.AdmitHeader(r.Context(), r.Header.Get("Authorization"), toolName, featureName)
}

func (f *Facade) reject(err error) error {
	outcome := "internal"
	if e, ok := apierr.As(err); ok {
		outcome = string(e.Kind)
	}
	metrics.AdmissionsTotal.WithLabelValues(outcome).Inc()
	return err
}
