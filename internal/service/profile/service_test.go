package profile

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/service/guard"
	"github.com/oggyb/kinnect/internal/storage"
	"github.com/oggyb/kinnect/internal/testutil"
)

type memUploader struct {
	keys []string
	data map[string][]byte
}

func (m *memUploader) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.keys = append(m.keys, key)
	m.data[key] = b
	return "https://cdn.test/" + key, nil
}

func ptr[T any](v T) *T { return &v }

func TestGetMeAndUpdate(t *testing.T) {
	fx := testutil.New(t)
	svc := NewProfileService(fx.App)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")

	me, err := svc.GetMe(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Name)
	assert.Equal(t, a.Phone, me.Phone)

	me, err = svc.UpdateMe(ctx, a.ID, Update{
		Name:      ptr(" Alice "),
		Username:  ptr("Alice_1"),
		Bio:       ptr("hello"),
		IsPrivate: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", me.Name)
	require.NotNil(t, me.Username)
	assert.Equal(t, "alice_1", *me.Username)
	assert.Equal(t, "hello", me.Bio)
	assert.True(t, me.IsPrivate)

	_, err = svc.UpdateMe(ctx, b.ID, Update{Username: ptr("ALICE_1")})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// clearing frees the name for someone else
	_, err = svc.UpdateMe(ctx, a.ID, Update{Username: ptr("")})
	require.NoError(t, err)
	_, err = svc.UpdateMe(ctx, b.ID, Update{Username: ptr("alice_1")})
	require.NoError(t, err)

	_, err = svc.GetMe(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, guard.ErrUserNotFound)
}

func TestGetUserRelationshipFlags(t *testing.T) {
	fx := testutil.New(t)
	svc := NewProfileService(fx.App)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	c := fx.User(t, "carol")
	fx.Follow(t, a.ID, b.ID)
	fx.Follow(t, c.ID, b.ID)

	p, err := svc.GetUser(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.FollowersCount)
	assert.True(t, p.IsFollowing)
	assert.False(t, p.FollowsYou)

	p, err = svc.GetUser(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, p.IsFollowing)
	assert.True(t, p.FollowsYou)

	require.NoError(t, fx.DB.Create(&db.Block{BlockerID: b.ID, BlockedID: c.ID}).Error)
	_, err = svc.GetUser(ctx, c.ID, b.ID)
	assert.ErrorIs(t, err, guard.ErrUserNotFound)

	fx.Deactivate(t, a.ID)
	_, err = svc.GetUser(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, guard.ErrUserNotFound)
}

func TestUploadAvatar(t *testing.T) {
	up := &memUploader{}
	fx := testutil.New(t, app.WithUploader(up))
	svc := NewProfileService(fx.App)
	ctx := testutil.Ctx(t)
	a := fx.User(t, "alice")

	_, err := svc.UploadAvatar(ctx, a.ID, "notes.txt", "text/plain", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrNotAnImage)

	me, err := svc.UploadAvatar(ctx, a.ID, "me.PNG", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	require.Len(t, up.keys, 1)
	assert.True(t, strings.HasPrefix(up.keys[0], "avatars/"+a.ID+"/"))
	assert.True(t, strings.HasSuffix(up.keys[0], ".png"))
	assert.Equal(t, "https://cdn.test/"+up.keys[0], me.AvatarURL)
}

func TestUploadAvatarWithoutStorage(t *testing.T) {
	fx := testutil.New(t)
	svc := NewProfileService(fx.App)
	a := fx.User(t, "alice")

	_, err := svc.UploadAvatar(testutil.Ctx(t), a.ID, "me.png", "image/png", strings.NewReader("png"), 3)
	assert.ErrorIs(t, err, storage.ErrStorageDisabled)
}

func TestHandlerProfileRoutes(t *testing.T) {
	up := &memUploader{}
	fx := testutil.New(t, app.WithUploader(up))
	router := chi.NewRouter()
	NewRegistrar(fx.App).Register(router)

	a := fx.User(t, "alice")
	pair, err := fx.App.Tokens.IssuePair(a.ID, string(db.RoleUser))
	require.NoError(t, err)

	do := func(req *http.Request) *httptest.ResponseRecorder {
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := do(httptest.NewRequest(http.MethodGet, "/users/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"alice"`)

	rec = do(httptest.NewRequest(http.MethodPatch, "/users/me", strings.NewReader(`{"username":"a!"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(httptest.NewRequest(http.MethodPatch, "/users/me", strings.NewReader(`{"bio":"hey"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"bio":"hey"`)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="avatar"; filename="me.jpg"`)
	hdr.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/users/me/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://cdn.test/avatars/")
}
