package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/mulmes2sqlite/database"
	"github.com/LilVoxy/mulmes2sqlite/utils"
)

// newTestServer поднимает сервер над заполненным архивом:
// один чат с двумя сообщениями, пользователи сверены и привязаны
func newTestServer(t *testing.T) (*httptest.Server, *database.Store) {
	t.Helper()

	db, err := database.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := database.NewStore(db, utils.NewDiscardLogger(), 100)
	require.NoError(t, store.CreateSchema())
	require.NoError(t, store.CreateRunLogTable())

	chat := &database.ChatObject{
		IDOrig: 10,
		Name:   "Тестовый чат",
		Messages: []database.Message{
			{MsgIDOrig: 1, ChatIDOrig: 10, FromIDOrig: 77, Date: 1600000000, Text: "привет", DataSrc: database.SourceTG},
			{MsgIDOrig: 2, ChatIDOrig: 10, FromIDOrig: 88, Date: 1600000100, Text: "пока", DataSrc: database.SourceTG},
		},
	}
	_, err = store.IngestChat(chat, database.SourceTG)
	require.NoError(t, err)

	_, err = store.ResolveIdentities(database.SourceTG, map[int64]string{77: "Алиса", 88: "Боб"})
	require.NoError(t, err)
	require.NoError(t, store.BindForeignKeys())

	ts := httptest.NewServer(NewServer(store, utils.NewDiscardLogger()).Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func getJSON(t *testing.T, url string, dst interface{}) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestServerChats(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Chats []ChatInfo `json:"chats"`
	}
	getJSON(t, ts.URL+"/api/chats", &body)

	require.Len(t, body.Chats, 1)
	assert.Equal(t, "Тестовый чат", body.Chats[0].ChatName)
	assert.Equal(t, 2, body.Chats[0].MsgCount)
	assert.Equal(t, int64(1600000100), body.Chats[0].LastMsgDate)
	assert.Equal(t, "tg", body.Chats[0].DataSrc)
}

func TestServerMessages(t *testing.T) {
	ts, store := newTestServer(t)

	chatID, found, err := store.LookupChatID(database.SourceTG, 10)
	require.NoError(t, err)
	require.True(t, found)

	var body struct {
		Messages []MessageInfo `json:"messages"`
	}
	getJSON(t, fmt.Sprintf("%s/api/messages?chat_id=%d", ts.URL, chatID), &body)

	require.Len(t, body.Messages, 2)
	assert.Equal(t, "Алиса", body.Messages[0].FromName)
	assert.Equal(t, "привет", body.Messages[0].Text)
	assert.Equal(t, "Боб", body.Messages[1].FromName)

	// Постраничная выборка
	getJSON(t, fmt.Sprintf("%s/api/messages?chat_id=%d&limit=1&offset=1", ts.URL, chatID), &body)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "пока", body.Messages[0].Text)
}

func TestServerMessagesBadRequest(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/messages")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/messages?chat_id=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	var status StatusInfo
	getJSON(t, ts.URL+"/api/status", &status)

	assert.Equal(t, 1, status.Chats)
	assert.Equal(t, 2, status.Messages)
	assert.Equal(t, 2, status.Users)
	assert.Zero(t, status.Unresolved.FromID)
	assert.Zero(t, status.Unresolved.ChatID)
}

func TestServerRunsEmpty(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Runs []database.RunLog `json:"runs"`
	}
	getJSON(t, ts.URL+"/api/runs", &body)
	assert.Empty(t, body.Runs)
}

func TestServerCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/chats", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
