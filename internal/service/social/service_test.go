package social

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/kinnect/internal/db"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/service/guard"
	"github.com/oggyb/kinnect/internal/utils/pagination"
	"github.com/oggyb/kinnect/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.Fixture) {
	t.Helper()
	fx := testutil.New(t)
	return NewSocialService(fx.App), fx
}

func countRows(t *testing.T, fx *testutil.Fixture, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, fx.DB.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func TestFollowRequestAcceptScenario(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")

	req, err := svc.SendFollowRequest(ctx, a.ID, b.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, db.StatusPending, req.Status)
	assert.Equal(t, "hi", req.Message)
	assert.Equal(t, fx.Clock.Now().Add(7*24*time.Hour), req.ExpiresAt)

	accepted, err := svc.AcceptFollowRequest(ctx, b.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)

	following, _, err := svc.ListFollowing(ctx, a.ID, a.ID, nil, 0)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, b.ID, following[0].User.ID)

	followers, _, err := svc.ListFollowers(ctx, b.ID, b.ID, nil, 0)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, a.ID, followers[0].User.ID)

	var stored db.FollowRequest
	require.NoError(t, fx.DB.First(&stored, "id = ?", req.ID).Error)
	assert.Equal(t, db.StatusAccepted, stored.Status)
	assert.NotNil(t, stored.RespondedAt)

	_, err = svc.SendFollowRequest(ctx, a.ID, b.ID, "again")
	assert.ErrorIs(t, err, ErrAlreadyFollowing)
}

func TestDuplicatePendingRequestEitherDirection(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")

	_, err := svc.SendFollowRequest(ctx, a.ID, b.ID, "")
	require.NoError(t, err)

	_, err = svc.SendFollowRequest(ctx, a.ID, b.ID, "")
	assert.ErrorIs(t, err, ErrFollowRequestExists)

	_, err = svc.SendFollowRequest(ctx, b.ID, a.ID, "")
	assert.ErrorIs(t, err, ErrFollowRequestExists)

	assert.Equal(t, int64(1), countRows(t, fx, &db.FollowRequest{}, "1 = 1"))
}

func TestAcceptIsIdempotentOnEdges(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")

	req, err := svc.SendFollowRequest(ctx, a.ID, b.ID, "")
	require.NoError(t, err)

	// the edge shows up through another path before the accept lands
	fx.Follow(t, a.ID, b.ID)

	accepted, err := svc.AcceptFollowRequest(ctx, b.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusAccepted, accepted.Status)

	_, err = svc.AcceptFollowRequest(ctx, b.ID, req.ID)
	assert.ErrorIs(t, err, ErrFollowRequestNotPending)

	assert.Equal(t, int64(1), countRows(t, fx, &db.Follow{}, "follower_id = ? AND followee_id = ?", a.ID, b.ID))
}

func TestSendFollowRequestGuards(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	c := fx.User(t, "carol")
	fx.Deactivate(t, c.ID)

	_, err := svc.SendFollowRequest(ctx, a.ID, a.ID, "")
	assert.ErrorIs(t, err, ErrFollowSelf)

	_, err = svc.SendFollowRequest(ctx, a.ID, "00000000-0000-0000-0000-000000000000", "")
	assert.ErrorIs(t, err, guard.ErrUserNotFound)

	_, err = svc.SendFollowRequest(ctx, a.ID, c.ID, "")
	assert.ErrorIs(t, err, guard.ErrUserInactive)

	require.NoError(t, svc.Block(ctx, b.ID, a.ID))
	_, err = svc.SendFollowRequest(ctx, a.ID, b.ID, "")
	assert.ErrorIs(t, err, guard.ErrBlocked)
}

func TestAcceptExpiredRequest(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")

	req, err := svc.SendFollowRequest(ctx, a.ID, b.ID, "")
	require.NoError(t, err)

	fx.Clock.Advance(7*24*time.Hour + time.Second)

	incoming, err := svc.ListFollowRequests(ctx, b.ID, Incoming)
	require.NoError(t, err)
	assert.Empty(t, incoming)

	_, err = svc.AcceptFollowRequest(ctx, b.ID, req.ID)
	assert.ErrorIs(t, err, ErrFollowRequestExpired)

	assert.Zero(t, countRows(t, fx, &db.FollowRequest{}, "id = ?", req.ID))
	assert.Zero(t, countRows(t, fx, &db.Follow{}, "1 = 1"))

	// the pair is free again
	_, err = svc.SendFollowRequest(ctx, a.ID, b.ID, "")
	require.NoError(t, err)
}

func TestRejectThenResendReusesLedgerRow(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")

	req, err := svc.SendFollowRequest(ctx, a.ID, b.ID, "")
	require.NoError(t, err)

	_, err = svc.AcceptFollowRequest(ctx, a.ID, req.ID)
	assert.ErrorIs(t, err, ErrFollowRequestNotFound)

	rejected, err := svc.RejectFollowRequest(ctx, b.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusRejected, rejected.Status)
	assert.NotNil(t, rejected.RespondedAt)

	_, err = svc.RejectFollowRequest(ctx, b.ID, req.ID)
	assert.ErrorIs(t, err, ErrFollowRequestNotPending)

	fx.Clock.Advance(time.Hour)
	again, err := svc.SendFollowRequest(ctx, a.ID, b.ID, "please")
	require.NoError(t, err)
	assert.Equal(t, req.ID, again.ID)
	assert.Equal(t, db.StatusPending, again.Status)
	assert.Nil(t, again.RespondedAt)
	assert.Equal(t, fx.Clock.Now().Add(7*24*time.Hour), again.ExpiresAt.UTC())

	assert.Equal(t, int64(1), countRows(t, fx, &db.FollowRequest{}, "1 = 1"))
}

func TestResentRequestListsAsNewest(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	c := fx.User(t, "carol")

	first, err := svc.SendFollowRequest(ctx, a.ID, c.ID, "")
	require.NoError(t, err)
	_, err = svc.RejectFollowRequest(ctx, c.ID, first.ID)
	require.NoError(t, err)

	fx.Clock.Advance(time.Minute)
	_, err = svc.SendFollowRequest(ctx, b.ID, c.ID, "from b")
	require.NoError(t, err)

	fx.Clock.Advance(time.Minute)
	again, err := svc.SendFollowRequest(ctx, a.ID, c.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, fx.Clock.Now(), again.CreatedAt.UTC())

	incoming, err := svc.ListFollowRequests(ctx, c.ID, Incoming)
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	assert.Equal(t, first.ID, incoming[0].ID)
	assert.Equal(t, "again", incoming[0].Message)
	assert.Equal(t, "from b", incoming[1].Message)
}

func TestCancelAndListFollowRequests(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	c := fx.User(t, "carol")

	ab, err := svc.SendFollowRequest(ctx, a.ID, b.ID, "")
	require.NoError(t, err)
	_, err = svc.SendFollowRequest(ctx, c.ID, b.ID, "")
	require.NoError(t, err)

	incoming, err := svc.ListFollowRequests(ctx, b.ID, Incoming)
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	require.NotNil(t, incoming[0].Requester)

	outgoing, err := svc.ListFollowRequests(ctx, a.ID, Outgoing)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, b.ID, outgoing[0].Recipient.ID)

	_, err = svc.ListFollowRequests(ctx, a.ID, Direction("sideways"))
	assert.ErrorIs(t, err, ErrInvalidDirection)

	assert.ErrorIs(t, svc.CancelFollowRequest(ctx, b.ID, ab.ID), ErrFollowRequestNotFound)
	require.NoError(t, svc.CancelFollowRequest(ctx, a.ID, ab.ID))

	incoming, _ = svc.ListFollowRequests(ctx, b.ID, Incoming)
	assert.Len(t, incoming, 1)
}

func TestUnfollowAndRemoveFollower(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	fx.Mutual(t, a.ID, b.ID)

	require.NoError(t, svc.Unfollow(ctx, a.ID, b.ID))
	assert.ErrorIs(t, svc.Unfollow(ctx, a.ID, b.ID), ErrNotFollowing)

	require.NoError(t, svc.RemoveFollower(ctx, a.ID, b.ID))
	assert.ErrorIs(t, svc.RemoveFollower(ctx, a.ID, b.ID), ErrNotFollower)

	assert.Zero(t, countRows(t, fx, &db.Follow{}, "1 = 1"))
}

func TestCountsAreCachedAndInvalidated(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	fx.Follow(t, a.ID, b.ID)

	counts, err := svc.Counts(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Followers)
	assert.Equal(t, int64(0), counts.Following)
	assert.True(t, fx.Redis.Exists(fx.App.RedisCache.KeyForFollowerCount(b.ID)))

	// a write that bypasses the service is not seen until the cache is dropped
	fx.Follow(t, b.ID, a.ID)
	counts, _ = svc.Counts(ctx, b.ID)
	assert.Equal(t, int64(0), counts.Following)

	require.NoError(t, svc.Unfollow(ctx, a.ID, b.ID))
	counts, err = svc.Counts(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Followers)
	assert.Equal(t, int64(1), counts.Following)
}

func TestBlockSeversRelationship(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	fx.Mutual(t, a.ID, b.ID)
	require.NoError(t, fx.DB.Create(&db.MessageRequest{
		FromUserID: a.ID, ToUserID: b.ID, ExpiresAt: fx.Clock.Now().Add(time.Hour),
	}).Error)
	require.NoError(t, fx.DB.Create(&db.FollowRequest{
		RequesterID: b.ID, RecipientID: a.ID, ExpiresAt: fx.Clock.Now().Add(time.Hour),
	}).Error)

	assert.ErrorIs(t, svc.Block(ctx, a.ID, a.ID), ErrBlockSelf)
	require.NoError(t, svc.Block(ctx, a.ID, b.ID))
	require.NoError(t, svc.Block(ctx, a.ID, b.ID))

	assert.Equal(t, int64(1), countRows(t, fx, &db.Block{}, "1 = 1"))
	assert.Zero(t, countRows(t, fx, &db.Follow{}, "1 = 1"))
	assert.Zero(t, countRows(t, fx, &db.FollowRequest{}, "1 = 1"))
	assert.Zero(t, countRows(t, fx, &db.MessageRequest{}, "1 = 1"))

	_, _, err := svc.ListFollowers(ctx, b.ID, a.ID, nil, 0)
	assert.ErrorIs(t, err, guard.ErrUserNotFound)

	blocked, err := svc.ListBlocked(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, b.ID, blocked[0].User.ID)

	require.NoError(t, svc.Unblock(ctx, a.ID, b.ID))
	assert.ErrorIs(t, svc.Unblock(ctx, a.ID, b.ID), ErrNotBlocked)
}

func TestPrivateAccountGraphVisibility(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	require.NoError(t, fx.DB.Model(&db.User{}).Where("id = ?", b.ID).Update("is_private", true).Error)

	_, _, err := svc.ListFollowers(ctx, a.ID, b.ID, nil, 0)
	assert.ErrorIs(t, err, ErrPrivateAccount)

	fx.Follow(t, a.ID, b.ID)
	followers, _, err := svc.ListFollowers(ctx, a.ID, b.ID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, followers, 1)
}

func TestHandlerFollowRoutes(t *testing.T) {
	fx := testutil.New(t)
	router := chi.NewRouter()
	NewRegistrar(fx.App).Register(router)

	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	tokenFor := func(id string) string {
		pair, err := fx.App.Tokens.IssuePair(id, string(db.RoleUser))
		require.NoError(t, err)
		return pair.AccessToken
	}

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/blocks", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(http.MethodPost, "/follow-requests", tokenFor(a.ID), `{"userId":"`+b.ID+`","message":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(http.MethodPost, "/follow-requests", tokenFor(a.ID), `{"userId":"`+b.ID+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "FOLLOW_REQUEST_EXISTS")

	rec = do(http.MethodPost, "/follow-requests", tokenFor(a.ID), `{"userId":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodGet, "/follow-requests?direction=incoming", tokenFor(b.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), a.ID)

	rec = do(http.MethodGet, "/users/"+b.ID+"/counts", tokenFor(a.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"followers":0`)

	rec = do(http.MethodPost, "/users/"+b.ID+"/block", tokenFor(a.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(http.MethodDelete, "/users/"+b.ID+"/follow", tokenFor(a.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOLLOWING")
}

func TestListFollowersErrorMapping(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")

	bad := "%%%"
	_, _, err := svc.ListFollowers(ctx, a.ID, a.ID, &bad, 10)
	assert.ErrorIs(t, err, ErrInvalidPaginationToken)

	token, err := pagination.Encode(pagination.Cursor{ID: a.ID, CreatedUnix: fx.Clock.Now().UnixMilli()})
	require.NoError(t, err)
	require.NoError(t, fx.DB.Migrator().DropTable(&db.Follow{}))

	_, _, err = svc.ListFollowers(ctx, a.ID, a.ID, &token, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPaginationToken)
	de := svcErr.As(err)
	require.NotNil(t, de)
	assert.Equal(t, svcErr.KindInternal, de.Kind)
}
