package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"imagebot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:TEST"

// fakeBotAPI emulates the subset of the Telegram Bot API the channel uses.
type fakeBotAPI struct {
	mu       sync.Mutex
	messages []sentText
	photos   []photoUpload
	updates  []tgbotapi.Update
	served   bool
}

type sentText struct {
	chatID string
	text   string
}

type photoUpload struct {
	chatID string
	name   string
	data   []byte
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	w.Header().Set("Content-Type", "application/json")

	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":99,"is_bot":true,"first_name":"Image Bot","username":"imagebot"}}`)
	case "sendMessage":
		r.ParseForm()
		f.mu.Lock()
		f.messages = append(f.messages, sentText{r.FormValue("chat_id"), r.FormValue("text")})
		f.mu.Unlock()
		writeSentMessage(w, r.FormValue("chat_id"))
	case "sendPhoto":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		f.mu.Lock()
		f.photos = append(f.photos, photoUpload{r.FormValue("chat_id"), header.Filename, data})
		f.mu.Unlock()
		writeSentMessage(w, r.FormValue("chat_id"))
	case "getUpdates":
		f.mu.Lock()
		var batch []tgbotapi.Update
		if !f.served {
			batch = f.updates
			f.served = true
		}
		f.mu.Unlock()
		if len(batch) == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": batch})
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func writeSentMessage(w http.ResponseWriter, chatID string) {
	id, _ := strconv.ParseInt(chatID, 10, 64)
	fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":%d,"type":"private"}}}`, id)
}

func newTestTelegram(t *testing.T, api *fakeBotAPI, allow ...string) *Telegram {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tg := NewTelegram(TelegramConfig{
		Token:       testToken,
		AllowFrom:   allow,
		PollTimeout: 0,
		APIEndpoint: srv.URL + "/bot%s/%s",
		HTTPClient:  srv.Client(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, tg.Connect())
	return tg
}

type recordingHandler struct {
	mu   sync.Mutex
	msgs []domain.IncomingMessage
	got  chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{got: make(chan struct{}, 16)}
}

func (h *recordingHandler) Handle(_ context.Context, msg domain.IncomingMessage) {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
	h.got <- struct{}{}
}

func textUpdate(id int, chatID, userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: id,
		From:      &tgbotapi.User{ID: userID, UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Date:      1700000000,
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmdLen := len(text)
		if i := strings.IndexByte(text, ' '); i > 0 {
			cmdLen = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return tgbotapi.Update{UpdateID: id, Message: msg}
}

// --- connect / send ---

func TestTelegram_Connect(t *testing.T) {
	tg := newTestTelegram(t, &fakeBotAPI{})
	assert.Equal(t, "imagebot", tg.Username())
}

func TestTelegram_ConnectRejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{
		Token:       "bad",
		APIEndpoint: srv.URL + "/bot%s/%s",
		HTTPClient:  srv.Client(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.Error(t, tg.Connect())
}

func TestTelegram_SendMessage(t *testing.T) {
	api := &fakeBotAPI{}
	tg := newTestTelegram(t, api)

	require.NoError(t, tg.SendMessage(context.Background(), 42, "Привет👏!"))

	require.Len(t, api.messages, 1)
	assert.Equal(t, sentText{"42", "Привет👏!"}, api.messages[0])
}

func TestTelegram_SendPhoto(t *testing.T) {
	api := &fakeBotAPI{}
	tg := newTestTelegram(t, api)
	image := []byte("\x89PNG\r\n\x1a\nimage-bytes")

	require.NoError(t, tg.SendPhoto(context.Background(), 42, image))

	require.Len(t, api.photos, 1)
	assert.Equal(t, "42", api.photos[0].chatID)
	assert.Equal(t, photoFileName, api.photos[0].name)
	assert.Equal(t, image, api.photos[0].data)
}

func TestTelegram_SendBeforeConnect(t *testing.T) {
	tg := NewTelegram(TelegramConfig{Token: testToken})
	assert.ErrorIs(t, tg.SendMessage(context.Background(), 1, "x"), errNotConnected)
	assert.ErrorIs(t, tg.SendPhoto(context.Background(), 1, []byte{1}), errNotConnected)
}

// --- update dispatch ---

func TestTelegram_HandleUpdate_Command(t *testing.T) {
	tg := newTestTelegram(t, &fakeBotAPI{})
	h := newRecordingHandler()

	tg.handleUpdate(context.Background(), h, textUpdate(1, 42, 7, "/start"))

	require.Len(t, h.msgs, 1)
	got := h.msgs[0]
	assert.True(t, got.IsCommand)
	assert.Equal(t, "start", got.Command)
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, int64(7), got.SenderID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, int64(1700000000), got.Timestamp.Unix())
}

func TestTelegram_HandleUpdate_Text(t *testing.T) {
	tg := newTestTelegram(t, &fakeBotAPI{})
	h := newRecordingHandler()

	tg.handleUpdate(context.Background(), h, textUpdate(2, 42, 7, "кот в шляпе"))

	require.Len(t, h.msgs, 1)
	assert.False(t, h.msgs[0].IsCommand)
	assert.Equal(t, "кот в шляпе", h.msgs[0].Text)
}

func TestTelegram_HandleUpdate_LogsMessageMetadata(t *testing.T) {
	tg := newTestTelegram(t, &fakeBotAPI{})
	var buf strings.Builder
	tg.logger = slog.New(slog.NewJSONHandler(&buf, nil))

	tg.handleUpdate(context.Background(), newRecordingHandler(), textUpdate(5, 42, 7, "кот в шляпе"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &rec))
	assert.Equal(t, "telegram message received", rec["msg"])
	assert.EqualValues(t, 5, rec["message_id"])
	assert.Equal(t, time.Unix(1700000000, 0).Format(time.RFC3339), rec["sent_at"])
}

func TestTelegram_HandleUpdate_IgnoresNonText(t *testing.T) {
	tg := newTestTelegram(t, &fakeBotAPI{})
	h := newRecordingHandler()

	sticker := textUpdate(3, 42, 7, "")
	tg.handleUpdate(context.Background(), h, sticker)
	tg.handleUpdate(context.Background(), h, tgbotapi.Update{UpdateID: 4})

	assert.Empty(t, h.msgs)
}

func TestTelegram_HandleUpdate_AllowList(t *testing.T) {
	api := &fakeBotAPI{}
	tg := newTestTelegram(t, api, "7", " 8 ")
	h := newRecordingHandler()

	tg.handleUpdate(context.Background(), h, textUpdate(1, 42, 7, "allowed"))
	tg.handleUpdate(context.Background(), h, textUpdate(2, 43, 8, "allowed too"))
	tg.handleUpdate(context.Background(), h, textUpdate(3, 44, 9, "stranger"))

	require.Len(t, h.msgs, 2)
	assert.Empty(t, api.messages, "unauthorized users get no reply")
}

// --- polling loop ---

func TestTelegram_StartDeliversInOrderAndStops(t *testing.T) {
	api := &fakeBotAPI{updates: []tgbotapi.Update{
		textUpdate(1, 42, 7, "/start"),
		textUpdate(2, 42, 7, "кот в шляпе"),
	}}
	tg := newTestTelegram(t, api)
	h := newRecordingHandler()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Start(ctx, h) }()

	for i := 0; i < 2; i++ {
		select {
		case <-h.got:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for updates")
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.msgs, 2)
	assert.Equal(t, "/start", h.msgs[0].Text)
	assert.Equal(t, "кот в шляпе", h.msgs[1].Text)
}
