// Package feature enforces the static tier entitlement matrix.
package feature

import (
	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/db/models"
)

// Gated feature names.
const (
	NewsAPISearch   = "newsapi_search"
	CustomFeeds     = "custom_feeds"
	SocialPosting   = "social_posting"
	UnlimitedTopics = "unlimited_topics"
	MediaUpload     = "media_upload"
)

// accessMatrix maps a feature to the tiers entitled to it. Features without
// an entry are open to every tier; that default-open policy is deliberate.
var accessMatrix = map[string][]string{
	NewsAPISearch:   {models.TierPro, models.TierBusiness},
	CustomFeeds:     {models.TierPro, models.TierBusiness},
	SocialPosting:   {models.TierPro, models.TierBusiness},
	UnlimitedTopics: {models.TierPro, models.TierBusiness},
	MediaUpload:     {models.TierPro, models.TierBusiness},
}

// Check permits the call or fails with Forbidden. The matrix is an explicit
// set per feature, not an ordinal tier comparison.
func Check(tier, featureName string) error {
	if !allowed(accessMatrix, tier, featureName) {
		return apierr.New(apierr.KindForbidden,
			"This feature requires Pro or Business tier. Upgrade to access.")
	}
	return nil
}

// Allowed reports whether tier is entitled to featureName.
func Allowed(tier, featureName string) bool {
	return allowed(accessMatrix, tier, featureName)
}

func allowed(matrix map[string][]string, tier, featureName string) bool {
	tiers, ok := matrix[featureName]
	if !ok || len(tiers) == 0 {
		return true
	}
	for _, t := range tiers {
		if t == tier {
			return true
		}
	}
	return false
}
