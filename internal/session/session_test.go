package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(now *time.Time) *Manager {
	m := NewManager("session-secret", DefaultTTL, DefaultRenewWithin)
	m.now = func() time.Time { return *now }
	return m
}

func TestIssueAndParse(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newTestManager(&now)

	token, err := m.Issue(12, "ada@example.com")
	require.NoError(t, err)

	c, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(12), c.UserID)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.False(t, m.NeedsRenewal(c))
}

func TestParse_Rejects(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newTestManager(&now)

	other := NewManager("other-secret", DefaultTTL, DefaultRenewWithin)
	other.now = m.now
	forged, err := other.Issue(12, "ada@example.com")
	require.NoError(t, err)

	valid, err := m.Issue(12, "ada@example.com")
	require.NoError(t, err)

	_, err = m.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = m.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalid)

	now = now.Add(DefaultTTL + time.Second)
	_, err = m.Parse(valid)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNeedsRenewal(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newTestManager(&now)

	token, err := m.Issue(1, "a@b.c")
	require.NoError(t, err)

	now = now.Add(DefaultTTL - time.Hour)
	c, err := m.Parse(token)
	require.NoError(t, err)
	assert.True(t, m.NeedsRenewal(c))
}
