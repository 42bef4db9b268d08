package token

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/kinnect/internal/config"
)

func newTestIssuer() *Issuer {
	cfg := config.New()
	cfg.Auth.AccessSecret = "a-secret"
	cfg.Auth.RefreshSecret = "r-secret"
	cfg.Auth.AccessTTL = time.Minute
	cfg.Auth.RefreshTTL = time.Hour
	return NewIssuer(cfg)
}

func TestIssueAndParsePair(t *testing.T) {
	iss := newTestIssuer()

	pair, err := iss.IssuePair("user-1", "user")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshID)

	access, err := iss.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, "user", access.Role)

	refresh, err := iss.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshID, refresh.ID)
}

func TestParse_RejectsWrongKind(t *testing.T) {
	iss := newTestIssuer()
	pair, err := iss.IssuePair("user-1", "admin")
	require.NoError(t, err)

	_, err = iss.ParseAccess(pair.RefreshToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = iss.ParseRefresh(pair.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestParse_RejectsExpired(t *testing.T) {
	iss := newTestIssuer()
	pair, err := iss.IssuePair("user-1", "user")
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = iss.ParseAccess(pair.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	// refresh lives longer
	_, err = iss.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestParse_RejectsGarbage(t *testing.T) {
	_, err := newTestIssuer().ParseAccess("not.a.jwt")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}
