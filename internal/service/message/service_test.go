package message

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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/service/chat"
	"github.com/oggyb/kinnect/internal/service/guard"
	"github.com/oggyb/kinnect/internal/testutil"
)

type memUploader struct {
	keys []string
}

func (m *memUploader) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	m.keys = append(m.keys, key)
	return "https://cdn.test/" + key, nil
}

type pair struct {
	a, b *db.User
	chat *db.Chat
}

func setup(t *testing.T, opts ...app.Option) (*Service, *testutil.Fixture, pair) {
	t.Helper()
	fx := testutil.New(t, opts...)
	svc := NewMessageService(fx.App)
	a := fx.User(t, "alice")
	b := fx.User(t, "bob")
	fx.Mutual(t, a.ID, b.ID)
	c, _, err := svc.chats.FindOrCreateChat(testutil.Ctx(t), a.ID, b.ID)
	require.NoError(t, err)
	return svc, fx, pair{a: a, b: b, chat: c}
}

func text(s string) Draft { return Draft{Type: db.MessageText, Content: s} }

func TestSendMessageUpdatesChat(t *testing.T) {
	svc, fx, p := setup(t)
	ctx := testutil.Ctx(t)

	// archived on both sides, the next message brings it back
	_, err := svc.chats.ArchiveChat(ctx, p.a.ID, p.chat.ID)
	require.NoError(t, err)
	_, err = svc.chats.ArchiveChat(ctx, p.b.ID, p.chat.ID)
	require.NoError(t, err)

	m, err := svc.SendMessage(ctx, p.a.ID, p.chat.ID, Draft{Content: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, db.MessageText, m.Type)
	assert.Equal(t, "hello", m.Content)
	assert.True(t, m.CreatedAt.Equal(fx.Clock.Now()))

	view, err := svc.chats.GetChat(ctx, p.b.ID, p.chat.ID)
	require.NoError(t, err)
	assert.True(t, view.IsActive)
	assert.False(t, view.Settings.IsArchived)
	assert.Equal(t, 1, view.Settings.UnreadCount)
	require.NotNil(t, view.LastMessage)
	assert.Equal(t, m.ID, view.LastMessage.ID)
	require.NotNil(t, view.LastMessageAt)
	assert.True(t, view.LastMessageAt.Equal(m.CreatedAt))

	mine, err := svc.chats.GetChat(ctx, p.a.ID, p.chat.ID)
	require.NoError(t, err)
	assert.Zero(t, mine.Settings.UnreadCount)
}

func TestSendMessageValidation(t *testing.T) {
	svc, fx, p := setup(t)
	ctx := testutil.Ctx(t)
	outsider := fx.User(t, "eve")

	_, err := svc.SendMessage(ctx, p.a.ID, p.chat.ID, text("   "))
	assert.ErrorIs(t, err, ErrContentRequired)
	_, err = svc.SendMessage(ctx, p.a.ID, p.chat.ID, Draft{Type: "sticker", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidType)
	_, err = svc.SendMessage(ctx, p.a.ID, p.chat.ID, Draft{Type: db.MessageImage})
	assert.ErrorIs(t, err, ErrMediaRequired)
	_, err = svc.SendMessage(ctx, p.a.ID, p.chat.ID, text(strings.Repeat("x", MaxContentLength+1)))
	assert.ErrorIs(t, err, ErrContentTooLong)
	_, err = svc.SendMessage(ctx, outsider.ID, p.chat.ID, text("hi"))
	assert.ErrorIs(t, err, chat.ErrChatNotFound)

	img, err := svc.SendMessage(ctx, p.a.ID, p.chat.ID, Draft{Type: db.MessageImage, MediaURL: "https://cdn.test/a.png"})
	require.NoError(t, err)
	assert.Equal(t, db.MessageImage, img.Type)

	// replies must stay inside the chat
	other, _, err := svc.chats.FindOrCreateChat(ctx, p.a.ID, outsider.ID)
	require.NoError(t, err)
	foreign := &db.Message{ChatID: other.ID, SenderID: outsider.ID, Type: db.MessageText, Content: "x"}
	require.NoError(t, fx.DB.Create(foreign).Error)

	bad := foreign.ID
	_, err = svc.SendMessage(ctx, p.a.ID, p.chat.ID, Draft{Content: "re", ReplyToID: &bad})
	assert.ErrorIs(t, err, ErrReplyTarget)
	missing := "00000000-0000-0000-0000-000000000000"
	_, err = svc.SendMessage(ctx, p.a.ID, p.chat.ID, Draft{Content: "re", ReplyToID: &missing})
	assert.ErrorIs(t, err, ErrReplyTarget)

	reply, err := svc.SendMessage(ctx, p.b.ID, p.chat.ID, Draft{Content: "re", ReplyToID: &img.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)
	assert.Equal(t, img.ID, *reply.ReplyToID)

	require.NoError(t, fx.DB.Create(&db.Block{BlockerID: p.b.ID, BlockedID: p.a.ID}).Error)
	_, err = svc.SendMessage(ctx, p.a.ID, p.chat.ID, text("still there?"))
	assert.ErrorIs(t, err, guard.ErrBlocked)
}

func TestListMessagesPaginates(t *testing.T) {
	svc, fx, p := setup(t)
	ctx := testutil.Ctx(t)

	var ids []string
	for i := 0; i < 5; i++ {
		m, err := svc.SendMessage(ctx, p.a.ID, p.chat.ID, text("m"))
		require.NoError(t, err)
		ids = append(ids, m.ID)
		fx.Clock.Advance(time.Second)
	}

	first, next, err := svc.ListMessages(ctx, p.b.ID, p.chat.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotNil(t, next)
	assert.Equal(t, ids[4], first[0].ID)
	assert.Equal(t, ids[3], first[1].ID)
	secondPage := next

	rest, next, err := svc.ListMessages(ctx, p.b.ID, p.chat.ID, next, 10)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, rest, 3)
	assert.Equal(t, ids[0], rest[2].ID)

	bad := "not-a-token"
	_, _, err = svc.ListMessages(ctx, p.b.ID, p.chat.ID, &bad, 10)
	assert.ErrorIs(t, err, ErrInvalidPaginationToken)

	// A storage failure with a valid token is an internal error, not a bad token.
	require.NoError(t, fx.DB.Migrator().DropTable(&db.MessageReceipt{}, &db.MessageReaction{}, &db.Message{}))
	_, _, err = svc.ListMessages(ctx, p.b.ID, p.chat.ID, secondPage, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPaginationToken)
	de := svcErr.As(err)
	require.NotNil(t, de)
	assert.Equal(t, svcErr.KindInternal, de.Kind)
}

func TestEditAndDeleteMessage(t *testing.T) {
	svc, fx, p := setup(t)
	ctx := testutil.Ctx(t)

	m, err := svc.SendMessage(ctx, p.a.ID, p.chat.ID, text("helo"))
	require.NoError(t, err)

	_, err = svc.EditMessage(ctx, p.b.ID, m.ID, "nope")
	assert.ErrorIs(t, err, ErrNotSender)

	fx.Clock.Advance(time.Minute)
	edited, err := svc.EditMessage(ctx, p.a.ID, m.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Content)
	require.NotNil(t, edited.EditedAt)

	img, err := svc.SendMessage(ctx, p.a.ID, p.chat.ID, Draft{Type: db.MessageImage, MediaURL: "https://cdn.test/x.png"})
	require.NoError(t, err)
	_, err = svc.EditMessage(ctx, p.a.ID, img.ID, "caption")
	assert.ErrorIs(t, err, ErrOnlyTextEditable)

	assert.ErrorIs(t, svc.DeleteMessage(ctx, p.b.ID, m.ID), ErrNotSender)
	require.NoError(t, svc.DeleteMessage(ctx, p.a.ID, m.ID))
	assert.ErrorIs(t, svc.DeleteMessage(ctx, p.a.ID, m.ID), ErrMessageDeleted)
	_, err = svc.EditMessage(ctx, p.a.ID, m.ID, "again")
	assert.ErrorIs(t, err, ErrMessageDeleted)

	msgs, _, err := svc.ListMessages(ctx, p.b.ID, p.chat.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, m.ID, msgs[1].ID)
	assert.True(t, msgs[1].IsDeleted)
	assert.Empty(t, msgs[1].Content)
}

func TestReactions(t *testing.T) {
	svc, fx, p := setup(t)
	ctx := testutil.Ctx(t)
	outsider := fx.User(t, "eve")

	m, err := svc.SendMessage(ctx, p.a.ID, p.chat.ID, text("hi"))
	require.NoError(t, err)

	out, err := svc.React(ctx, p.b.ID, m.ID, "👍")
	require.NoError(t, err)
	require.Len(t, out.Reactions, 1)

	out, err = svc.React(ctx, p.b.ID, m.ID, "❤️")
	require.NoError(t, err)
	require.Len(t, out.Reactions, 1)
	assert.Equal(t, "❤️", out.Reactions[0].Emoji)

	_, err = svc.React(ctx, outsider.ID, m.ID, "👍")
	assert.ErrorIs(t, err, ErrMessageNotFound)
	_, err = svc.React(ctx, p.b.ID, m.ID, " ")
	assert.ErrorIs(t, err, ErrEmojiRequired)

	out, err = svc.Unreact(ctx, p.b.ID, m.ID)
	require.NoError(t, err)
	assert.Empty(t, out.Reactions)
	_, err = svc.Unreact(ctx, p.b.ID, m.ID)
	assert.ErrorIs(t, err, ErrReactionNotFound)

	require.NoError(t, svc.DeleteMessage(ctx, p.a.ID, m.ID))
	_, err = svc.React(ctx, p.b.ID, m.ID, "👍")
	assert.ErrorIs(t, err, ErrMessageDeleted)
}

func TestTypeForContent(t *testing.T) {
	assert.Equal(t, db.MessageImage, TypeForContent("image/png"))
	assert.Equal(t, db.MessageVideo, TypeForContent("video/mp4"))
	assert.Equal(t, db.MessageAudio, TypeForContent("audio/ogg; codecs=opus"))
	assert.Equal(t, db.MessageDocument, TypeForContent("application/pdf"))
	assert.Equal(t, db.MessageDocument, TypeForContent(""))
}

func TestHandlerMessageRoutes(t *testing.T) {
	up := &memUploader{}
	_, fx, p := setup(t, app.WithUploader(up))
	router := chi.NewRouter()
	NewRegistrar(fx.App).Register(router)

	tokens, err := fx.App.Tokens.IssuePair(p.a.ID, string(db.RoleUser))
	require.NoError(t, err)
	do := func(req *http.Request) *httptest.ResponseRecorder {
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}
	jsonReq := func(method, path, body string) *http.Request {
		return httptest.NewRequest(method, path, strings.NewReader(body))
	}

	rec := do(jsonReq(http.MethodPost, "/chats/"+p.chat.ID+"/messages", `{"content":"hi"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"content":"hi"`)

	rec = do(jsonReq(http.MethodGet, "/chats/"+p.chat.ID+"/messages?limit=1", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items"`)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="clip.mp4"`)
	hdr.Set("Content-Type", "video/mp4")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("mp4"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/chats/"+p.chat.ID+"/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = do(req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"video"`)
	require.Len(t, up.keys, 1)
	assert.True(t, strings.HasPrefix(up.keys[0], "attachments/"+p.chat.ID+"/"))
}
