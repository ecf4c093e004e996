package admission

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/auth/feature"
	"github.com/buzzposter/buzzposter/internal/db/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.UsageLog{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, tier string) *models.User {
	t.Helper()
	user := &models.User{
		ID:     uuid.NewString(),
		Email:  uuid.NewString() + "@example.com",
		APIKey: "bp_test_" + uuid.NewString(),
		Tier:   tier,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func usageCount(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.UsageLog{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count usage: %v", err)
	}
	return n
}

func TestAdmit_Success(t *testing.T) {
	db := newTestDB(t)
	f := New(db)
	user := seedUser(t, db, models.TierPro)

	tc, err := f.Admit(context.Background(), user.APIKey, "buzz_search_news", feature.NewsAPISearch)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if tc.Tier() != models.TierPro {
		t.Fatalf("tier = %q, want pro", tc.Tier())
	}
	if got := usageCount(t, db, user.ID); got != 1 {
		t.Fatalf("usage count = %d, want 1", got)
	}
}

func TestAdmit_UnknownKeyConsumesNothing(t *testing.T) {
	db := newTestDB(t)
	f := New(db)
	user := seedUser(t, db, models.TierFree)

	_, err := f.Admit(context.Background(), "bp_not-a-real-key", "buzz_get_topic", "")
	if !apierr.IsKind(err, apierr.KindUnauthenticated) {
		t.Fatalf("got %v, want unauthenticated", err)
	}
	if got := usageCount(t, db, user.ID); got != 0 {
		t.Fatalf("usage count = %d, want 0", got)
	}
}

func TestAdmit_QuotaExhausted(t *testing.T) {
	db := newTestDB(t)
	f := New(db)
	user := seedUser(t, db, models.TierFree)

	now := time.Now().UTC()
	for i := 0; i < 50; i++ {
		log := models.UsageLog{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			ToolName:  "buzz_get_topic",
			Timestamp: now,
		}
		if err := db.Create(&log).Error; err != nil {
			t.Fatalf("seed usage: %v", err)
		}
	}

	_, err := f.Admit(context.Background(), user.APIKey, "buzz_get_topic", "")
	if !apierr.IsKind(err, apierr.KindQuotaExceeded) {
		t.Fatalf("got %v, want quota_exceeded", err)
	}
	if got := usageCount(t, db, user.ID); got != 50 {
		t.Fatalf("usage count = %d, rejected call must not consume quota", got)
	}
}

// The feature gate runs after identity and quota; a forbidden call must not
// consume quota.
func TestAdmit_ForbiddenConsumesNothing(t *testing.T) {
	db := newTestDB(t)
	f := New(db)
	user := seedUser(t, db, models.TierFree)

	_, err := f.Admit(context.Background(), user.APIKey, "buzz_post", feature.SocialPosting)
	if !apierr.IsKind(err, apierr.KindForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
	if got := usageCount(t, db, user.ID); got != 0 {
		t.Fatalf("usage count = %d, want 0", got)
	}
}

func TestAdmit_UngatedToolSkipsFeatureCheck(t *testing.T) {
	db := newTestDB(t)
	f := New(db)
	user := seedUser(t, db, models.TierFree)

	if _, err := f.Admit(context.Background(), user.APIKey, "buzz_get_topic", ""); err != nil {
		t.Fatalf("ungated tool rejected: %v", err)
	}
}

func TestAdmitHeader(t *testing.T) {
	db := newTestDB(t)
	f := New(db)
	user := seedUser(t, db, models.TierPro)
	ctx := context.Background()

	if _, err := f.AdmitHeader(ctx, "Bearer "+user.APIKey, "buzz_get_topic", ""); err != nil {
		t.Fatalf("AdmitHeader: %v", err)
	}
	if _, err := f.AdmitHeader(ctx, "", "buzz_get_topic", ""); !apierr.IsKind(err, apierr.KindUnauthenticated) {
		t.Fatalf("missing header: got %v, want unauthenticated", err)
	}
	if _, err := f.AdmitHeader(ctx, user.APIKey, "buzz_get_topic", ""); !apierr.IsKind(err, apierr.KindUnauthenticated) {
		t.Fatalf("bare key without scheme: got %v, want unauthenticated", err)
	}
}

func TestAdmitRequest(t *testing.T) {
	db := newTestDB(t)
	f := New(db)
	user := seedUser(t, db, models.TierBusiness)

	r := httptest.NewRequest("POST", "/mcp", nil)
	r.Header.Set("Authorization", "Bearer "+user.APIKey)
	tc, err := f.AdmitRequest(r, "buzz_post", feature.SocialPosting)
	if err != nil {
		t.Fatalf("AdmitRequest: %v", err)
	}
	if tc.User.ID != user.ID {
		t.Fatalf("wrong tenant resolved")
	}
}
