package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestMongoIntegration runs against a live server when MONGODB_TEST_URI is set.
func TestMongoIntegration(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := "wellness_test_" + uuid.NewString()[:8]
	m, err := NewMongo(ctx, MongoOptions{URI: uri, Database: dbName}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.db.Drop(context.Background())
		_ = m.Close(context.Background())
	})
	require.NoError(t, m.EnsureIndexes(ctx))

	now := time.Now().UTC().Truncate(time.Millisecond)

	id, err := m.InsertAdmin(ctx, &Admin{Email: "admin@example.com", PasswordHash: "h", Name: "A", Role: "admin", CreatedAt: now})
	require.NoError(t, err)
	_, err = m.InsertAdmin(ctx, &Admin{Email: "admin@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, m.UpdateLastLogin(ctx, id, now))
	admin, err := m.FindAdminByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, admin.LastLogin)
	assert.True(t, now.Equal(*admin.LastLogin))

	exists, err := m.InquiriesExist(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = m.InsertInquiry(ctx, &Inquiry{Name: "N", Email: "n@example.com", InquiryType: "yoga", Message: "m", SubmittedAt: now, Status: InquiryStatusNew})
	require.NoError(t, err)

	byType, err := m.CountInquiriesByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TypeCount{{Type: "yoga", Count: 1}}, byType)

	_, err = m.InsertSubscriber(ctx, &Subscriber{Email: "s@example.com", SubscribedAt: now, Source: "direct"})
	require.NoError(t, err)
	subs, err := m.RecentSubscribers(ctx, 100)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	n, err := m.CountSubscribers(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
