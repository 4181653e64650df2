package parsers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/mulmes2sqlite/database"
	"github.com/LilVoxy/mulmes2sqlite/utils"
)

const tgSingleChatExport = `{
	"name": "Алиса",
	"type": "personal_chat",
	"id": 777,
	"messages": [
		{
			"id": 1,
			"type": "message",
			"date_unixtime": "1609459200",
			"from": "Алиса",
			"from_id": "user100",
			"text_entities": [
				{"type": "plain", "text": "привет "},
				{"type": "bold", "text": "мир"}
			]
		},
		{
			"id": 2,
			"type": "message",
			"date_unixtime": "1609459300",
			"edited_unixtime": "1609459400",
			"from": "Новости",
			"from_id": "channel555",
			"media_type": "video_file",
			"file": "video.mp4",
			"width": 640,
			"height": 480,
			"duration_seconds": 12,
			"text_entities": []
		},
		{
			"id": 3,
			"type": "service",
			"date_unixtime": "1609459500",
			"actor": "Алиса",
			"actor_id": "user100",
			"action": "create_group",
			"title": "Новая группа",
			"text_entities": []
		},
		{
			"id": 4,
			"type": "message",
			"date_unixtime": "1609459600",
			"from": "Алиса",
			"from_id": "user100",
			"forwarded_from": "Боб",
			"forwarded_from_id": "user200",
			"text_entities": [{"type": "plain", "text": "пересланный текст"}]
		},
		{
			"id": 5,
			"type": "message",
			"date_unixtime": "1609459700",
			"from": "Алиса",
			"from_id": "user100",
			"sticker_emoji": "😀",
			"text_entities": []
		},
		{
			"id": 6,
			"type": "unsupported",
			"date_unixtime": "1609459800",
			"text_entities": []
		}
	]
}`

// newTGParserWithExport пишет фикстуру result.json во временный каталог
func newTGParserWithExport(t *testing.T, exportJSON string) *TGjsonParser {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "result.json"), []byte(exportJSON), 0644))

	parser, err := NewTGjsonParser(dir, utils.NewDiscardLogger())
	require.NoError(t, err)
	return parser
}

func TestTGjsonSingleChat(t *testing.T) {
	parser := newTGParserWithExport(t, tgSingleChatExport)

	entries, err := parser.CreateDataEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].ChatCount)
	assert.Equal(t, "Алиса", entries[0].Name)

	chats, err := parser.ProcessDataEntry(entries[0])
	require.NoError(t, err)
	require.Len(t, chats, 1)

	chat := chats[0]
	assert.Equal(t, int64(777), chat.IDOrig)
	assert.Equal(t, "user", chat.PeerType)

	// Сообщение неизвестного типа отброшено
	require.Len(t, chat.Messages, 5)

	// Форматированный текст превращается в HTML
	first := chat.Messages[0]
	assert.Equal(t, "привет <b>мир</b>", first.Text)
	assert.True(t, first.HasFormatting)
	assert.Equal(t, int64(100), first.FromIDOrig)
	assert.Equal(t, int64(1609459200), first.Date)
	assert.Zero(t, first.Edited)
	assert.Equal(t, database.SourceTG, first.DataSrc)

	// Канал кодируется отрицательным ID, video_file приводится к video
	second := chat.Messages[1]
	assert.Equal(t, int64(-555), second.FromIDOrig)
	assert.Equal(t, int64(1609459400), second.Edited)
	require.Len(t, second.Attachments, 1)
	assert.Equal(t, database.AttachmentVideo, second.Attachments[0].Type)
	assert.Equal(t, "video.mp4", second.Attachments[0].LocalPath)
	assert.Equal(t, 640, second.Attachments[0].Width)
	assert.Equal(t, 12, second.Attachments[0].DurationSeconds)

	// Служебное сообщение: текстом становится действие
	service := chat.Messages[2]
	assert.True(t, service.IsServiceMsg)
	assert.Equal(t, "create_group", service.Text)
	assert.Contains(t, string(service.ServiceData), "Новая группа")

	// Пересланное сообщение: текст уходит в fwd-нагрузку
	fwd := chat.Messages[3]
	assert.Equal(t, "", fwd.Text)
	require.Len(t, fwd.FwdMessages, 1)
	assert.Equal(t, int64(200), fwd.FwdMessages[0].FromIDOrig)
	assert.Equal(t, "пересланный текст", fwd.FwdMessages[0].Text)

	// Пустой текст заменяется эмодзи стикера
	sticker := chat.Messages[4]
	assert.Equal(t, "😀", sticker.Text)

	// Словарь пользователей включает автора пересланного сообщения
	usernames := parser.Usernames()
	assert.Equal(t, "Алиса", usernames[100])
	assert.Equal(t, "Новости", usernames[-555])
	assert.Equal(t, "Боб", usernames[200])
}

func TestTGjsonFullExport(t *testing.T) {
	fullExport := `{
		"chats": {
			"list": [
				{"id": 1, "type": "personal_chat", "name": "Первый", "messages": []},
				{"id": 2, "type": "private_channel", "name": "", "messages": []}
			]
		}
	}`
	parser := newTGParserWithExport(t, fullExport)

	entries, err := parser.CreateDataEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].ChatCount)

	chats, err := parser.ProcessDataEntry(entries[0])
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "Первый", chats[0].Name)
	assert.Equal(t, "user", chats[0].PeerType)

	// Чат без имени получает заглушку, тип канала приводится к channel
	assert.Equal(t, "DELETED", chats[1].Name)
	assert.Equal(t, "channel", chats[1].PeerType)
}

func TestTGjsonParseUserPrefixes(t *testing.T) {
	parser := newTGParserWithExport(t, `{"name": "x", "id": 1, "messages": []}`)

	assert.Equal(t, int64(123), parser.parseUser("user123", "Имя"))
	assert.Equal(t, int64(-456), parser.parseUser("channel456", "Канал"))
	assert.Zero(t, parser.parseUser("group789", "Группа"))

	// Пустое имя заменяется заглушкой
	parser.parseUser("user42", "")
	assert.Equal(t, "DELETED", parser.Usernames()[42])
}

func TestTGjsonNotIncludedAttachment(t *testing.T) {
	export := `{
		"name": "x",
		"id": 1,
		"messages": [{
			"id": 1,
			"type": "message",
			"date_unixtime": "1609459200",
			"from": "Алиса",
			"from_id": "user100",
			"file": "(File not included. Change data exporting settings to download.)",
			"text_entities": []
		}]
	}`
	parser := newTGParserWithExport(t, export)

	entries, err := parser.CreateDataEntries()
	require.NoError(t, err)
	chats, err := parser.ProcessDataEntry(entries[0])
	require.NoError(t, err)

	require.Len(t, chats[0].Messages, 1)
	require.Len(t, chats[0].Messages[0].Attachments, 1)
	assert.Equal(t, "not_included", chats[0].Messages[0].Attachments[0].LocalPath)
}
