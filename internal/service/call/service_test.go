package call

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
	"github.com/oggyb/kinnect/internal/service/chat"
	"github.com/oggyb/kinnect/internal/testutil"
)

func setup(t *testing.T) (*Service, *testutil.Fixture, *db.User, *db.User, *db.Chat) {
	t.Helper()
	fx := testutil.New(t)
	svc := NewCallService(fx.App)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	c, _, err := svc.chats.FindOrCreateChat(testutil.Ctx(t), a.ID, b.ID)
	require.NoError(t, err)
	return svc, fx, a, b, c
}

func ptr[T any](v T) *T { return &v }

func TestLogCall(t *testing.T) {
	svc, fx, a, b, c := setup(t)
	ctx := testutil.Ctx(t)
	start := fx.Clock.Now().Add(-10 * time.Minute)

	ended, err := svc.LogCall(ctx, a.ID, c.ID, Entry{
		Type: db.CallVideo, Status: db.CallEnded, StartedAt: start, EndedAt: ptr(start.Add(95 * time.Second)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(95), ended.DurationSeconds)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ended.Participants)

	missed, err := svc.LogCall(ctx, b.ID, c.ID, Entry{
		Type: db.CallAudio, Status: db.CallMissed, StartedAt: start.Add(time.Minute), EndedAt: ptr(start.Add(2 * time.Minute)),
	})
	require.NoError(t, err)
	assert.Zero(t, missed.DurationSeconds)
	assert.Len(t, missed.Participants, 2)

	var callee db.CallParticipant
	require.NoError(t, fx.DB.First(&callee, "call_id = ? AND user_id = ?", missed.ID, a.ID).Error)
	assert.Nil(t, callee.JoinedAt)

	calls, total, err := svc.ListCalls(ctx, a.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, calls, 2)
	assert.Equal(t, missed.ID, calls[0].ID)

	got, err := svc.GetCall(ctx, b.ID, ended.ID)
	require.NoError(t, err)
	assert.Equal(t, db.CallEnded, got.Status)
}

func TestLogCallValidation(t *testing.T) {
	svc, fx, a, _, c := setup(t)
	ctx := testutil.Ctx(t)
	outsider := fx.User(t, "eve")
	start := fx.Clock.Now()

	cases := []struct {
		name string
		e    Entry
		want error
	}{
		{"bad type", Entry{Type: "hologram", Status: db.CallMissed, StartedAt: start}, ErrInvalidCallType},
		{"bad status", Entry{Type: db.CallAudio, Status: "ringing", StartedAt: start}, ErrInvalidStatus},
		{"ended without end", Entry{Type: db.CallAudio, Status: db.CallEnded, StartedAt: start}, ErrEndedAtRequired},
		{"end before start", Entry{Type: db.CallAudio, Status: db.CallRejected, StartedAt: start, EndedAt: ptr(start.Add(-time.Second))}, ErrEndBeforeStart},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.LogCall(ctx, a.ID, c.ID, tc.e)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := svc.LogCall(ctx, outsider.ID, c.ID, Entry{Type: db.CallAudio, Status: db.CallMissed, StartedAt: start})
	assert.ErrorIs(t, err, chat.ErrChatNotFound)

	logged, err := svc.LogCall(ctx, a.ID, c.ID, Entry{Type: db.CallAudio, Status: db.CallRejected, StartedAt: start})
	require.NoError(t, err)
	_, err = svc.GetCall(ctx, outsider.ID, logged.ID)
	assert.ErrorIs(t, err, ErrCallNotFound)
	_, err = svc.GetCall(ctx, a.ID, "missing")
	assert.ErrorIs(t, err, ErrCallNotFound)
}

func TestHandlerCallRoutes(t *testing.T) {
	_, fx, a, _, c := setup(t)
	router := chi.NewRouter()
	NewRegistrar(fx.App).Register(router)

	pair, err := fx.App.Tokens.IssuePair(a.ID, string(db.RoleUser))
	require.NoError(t, err)
	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	body := `{"type":"audio","status":"ended","startedAt":"2026-01-02T10:00:00Z","endedAt":"2026-01-02T10:01:30Z"}`
	rec := do(http.MethodPost, "/chats/"+c.ID+"/calls", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"durationSeconds":90`)

	rec = do(http.MethodPost, "/chats/"+c.ID+"/calls", `{"type":"audio","status":"ended"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodGet, "/calls", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}
