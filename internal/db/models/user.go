package models

import "time"

// Subscription tiers. The tier controls the daily call quota and the feature
// entitlement set; it is mutated only by the billing collaborator.
const (
	TierFree     = "free"
	TierPro      = "pro"
	TierBusiness = "business"
)

// ValidTier reports whether s is one of the known subscription tiers.
func ValidTier(s string) bool {
	return s == TierFree || s == TierPro || s == TierBusiness
}

// User is a subscriber account. Email and APIKey are globally unique.
// The Late* fields hold the social-provider OAuth credential and are mutated
// only by the token lifecycle manager; an empty LateAccessToken means the
// refresh token and expiry are meaningless. OAuthState is a single-use CSRF
// token, cleared atomically when the connect callback resolves it.
type User struct {
	ID               string `gorm:"primaryKey"` // UUID
	Email            string `gorm:"uniqueIndex"`
	APIKey           string `gorm:"column:api_key;uniqueIndex"`
	Tier             string `gorm:"default:free"`
	LateAccessToken  string
	LateRefreshToken string
	LateTokenExpiry  time.Time
	OAuthState       string `gorm:"column:oauth_state;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	UsageLogs []UsageLog `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}
