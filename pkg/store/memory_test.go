package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdmins(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.FindAdminByEmail(ctx, "admin@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id, err := m.InsertAdmin(ctx, &Admin{Email: "admin@example.com", PasswordHash: "hash", Name: "Admin", Role: "admin", CreatedAt: created})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = m.InsertAdmin(ctx, &Admin{Email: "admin@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := m.FindAdminByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Nil(t, got.LastLogin)

	at := created.Add(time.Hour)
	require.NoError(t, m.UpdateLastLogin(ctx, id, at))
	got, err = m.FindAdminByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.Equal(t, at, *got.LastLogin)

	assert.ErrorIs(t, m.UpdateLastLogin(ctx, "missing", at), ErrNotFound)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.InsertAdmin(ctx, &Admin{Email: "a@example.com", Name: "A"})
	require.NoError(t, err)

	got, err := m.FindAdminByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	got.Name = "changed"

	again, err := m.FindAdminByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "A", again.Name)
}

func TestMemorySubscribers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	recent, err := m.RecentSubscribers(ctx, 100)
	require.NoError(t, err)
	assert.NotNil(t, recent)
	assert.Empty(t, recent)

	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := m.InsertSubscriber(ctx, &Subscriber{Email: email, SubscribedAt: base.Add(time.Duration(i) * time.Hour), Source: "direct"})
		require.NoError(t, err)
	}
	_, err = m.InsertSubscriber(ctx, &Subscriber{Email: "a@example.com"})
	assert.True(t, errors.Is(err, ErrDuplicate))

	sub, err := m.FindSubscriberByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, "direct", sub.Source)
	_, err = m.FindSubscriberByEmail(ctx, "z@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	recent, err = m.RecentSubscribers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c@example.com", recent[0].Email)
	assert.Equal(t, "b@example.com", recent[1].Email)

	total, err := m.CountSubscribers(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	since, err := m.CountSubscribers(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), since, "lower bound is inclusive")
}

func TestMemoryInquiries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	exists, err := m.InquiriesExist(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	byType, err := m.CountInquiriesByType(ctx)
	require.NoError(t, err)
	assert.Empty(t, byType)

	types := []string{"massage", "yoga", "massage"}
	for i, typ := range types {
		id, err := m.InsertInquiry(ctx, &Inquiry{
			Name: "N", Email: "n@example.com", InquiryType: typ, Message: "hi",
			SubmittedAt: base.Add(time.Duration(i) * time.Minute), Status: InquiryStatusNew,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	}

	exists, err = m.InquiriesExist(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	recent, err := m.RecentInquiries(ctx, 50)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].SubmittedAt.After(recent[1].SubmittedAt))

	n, err := m.CountInquiries(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	byType, err = m.CountInquiriesByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TypeCount{{Type: "massage", Count: 2}, {Type: "yoga", Count: 1}}, byType)
}
