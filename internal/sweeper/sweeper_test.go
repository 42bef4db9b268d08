package sweeper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/testutil"
)

func TestSweepExpired(t *testing.T) {
	fx := testutil.New(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	c := fx.User(t, "carol")
	now := fx.Clock.Now()

	require.NoError(t, fx.DB.Create(&[]db.FollowRequest{
		{RequesterID: a.ID, RecipientID: b.ID, Status: db.StatusPending, ExpiresAt: now.Add(-time.Minute)},
		{RequesterID: a.ID, RecipientID: c.ID, Status: db.StatusPending, ExpiresAt: now.Add(time.Hour)},
		{RequesterID: b.ID, RecipientID: c.ID, Status: db.StatusRejected, ExpiresAt: now.Add(-time.Hour)},
	}).Error)
	require.NoError(t, fx.DB.Create(&[]db.MessageRequest{
		{FromUserID: a.ID, ToUserID: b.ID, Status: db.StatusPending, ExpiresAt: now},
		{FromUserID: c.ID, ToUserID: a.ID, Status: db.StatusPending, ExpiresAt: now.Add(time.Hour)},
		{FromUserID: b.ID, ToUserID: c.ID, Status: db.StatusAccepted, ExpiresAt: now.Add(-time.Hour)},
	}).Error)

	s := New(fx.App)
	res, err := s.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.FollowRequestsDeleted)
	assert.Equal(t, int64(1), res.MessageRequestsExpired)

	var follows int64
	require.NoError(t, fx.DB.Model(&db.FollowRequest{}).Count(&follows).Error)
	assert.Equal(t, int64(2), follows)

	var expired db.MessageRequest
	require.NoError(t, fx.DB.First(&expired, "from_user_id = ? AND to_user_id = ?", a.ID, b.ID).Error)
	assert.Equal(t, db.StatusExpired, expired.Status)

	// a second pass finds nothing
	res, err = s.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, res.FollowRequestsDeleted)
	assert.Zero(t, res.MessageRequestsExpired)
}

func TestStartRejectsBadSpec(t *testing.T) {
	fx := testutil.New(t)
	s := New(fx.App)
	require.Error(t, s.Start("not a schedule"))

	require.NoError(t, s.Start("@every 1h"))
	s.Stop(testutil.Ctx(t))
}
