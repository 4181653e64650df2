package parsers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/LilVoxy/mulmes2sqlite/database"
	"github.com/LilVoxy/mulmes2sqlite/utils"
)

// content атрибута jd — base64 от {"user_id":42} без выравнивания
const vkChatPage = `<html>
<head><meta name="jd" content="eyJ1c2VyX2lkIjo0Mn0"></head>
<body>
<div class="ui_crumb">Алиса</div>
<div class="message" data-id="100">
  <div class="message__header"><a href="https://vk.com/id77">Алиса</a>, 12 янв 2021 в 15:04:05</div>
  <div>Привет<br>мир</div>
</div>
<div class="message" data-id="101">
  <div class="message__header">Вы, 13 янв 2021 в 10:00:00</div>
  <div>Ответ</div>
</div>
<div class="message" data-id="102">
  <div class="message__header"><a href="https://vk.com/club900">Сообщество</a>, 14 янв 2021 в 11:00:00<span class="message-edited" title="14 янв 2021 в 11:05:00"> (ред.)</span></div>
  <div>Фото
    <div class="kludges"><div class="attachment"><div class="attachment__description">Фотография</div><a class="attachment__link" href="https://vk.com/photo1">Ссылка</a></div></div>
  </div>
</div>
<div class="message" data-id="103">
  <div class="message__header"><a href="https://vk.com/id77">Алиса</a>, 15 янв 2021 в 12:00:00</div>
  <div>
    <div class="kludges"><a class="im_srv_lnk">Алиса создала беседу</a></div>
  </div>
</div>
<div class="message" data-id="104">
  <div class="message__header"><a href="https://vk.com/id77">Алиса</a>, 16 янв 2021 в 13:00:00</div>
  <div>
    <div class="kludges"><div class="attachment"><div class="attachment__description">2 прикрепленных сообщения</div></div></div>
  </div>
</div>
</body>
</html>`

// writeCP1251 кодирует фикстуру в cp1251, как в настоящем VK-экспорте
func writeCP1251(t *testing.T, path, content string) {
	t.Helper()
	encoded, err := charmap.Windows1251.NewEncoder().String(content)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0644))
}

func newVKParserWithChat(t *testing.T) *VKhtmlParser {
	t.Helper()

	dir := t.TempDir()
	chatDir := filepath.Join(dir, "123")
	require.NoError(t, os.MkdirAll(chatDir, 0755))
	writeCP1251(t, filepath.Join(chatDir, "messages0.html"), vkChatPage)

	parser, err := NewVKhtmlParser(dir, 1, utils.NewDiscardLogger())
	require.NoError(t, err)
	return parser
}

func TestVKhtmlProcessChat(t *testing.T) {
	parser := newVKParserWithChat(t)

	entries, err := parser.CreateDataEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Алиса", entries[0].Name)

	chats, err := parser.ProcessDataEntry(entries[0])
	require.NoError(t, err)
	require.Len(t, chats, 1)

	chat := chats[0]
	assert.Equal(t, int64(123), chat.IDOrig)
	require.Len(t, chat.Messages, 5)

	// Обычное сообщение: автор по ссылке, перевод строки из <br>
	first := chat.Messages[0]
	assert.Equal(t, int64(100), first.MsgIDOrig)
	assert.Equal(t, int64(123), first.ChatIDOrig)
	assert.Equal(t, int64(77), first.FromIDOrig)
	assert.Equal(t, time.Date(2021, 1, 12, 15, 4, 5, 0, time.Local).Unix(), first.Date)
	assert.Equal(t, "Привет\nмир", first.Text)
	assert.Equal(t, database.SourceVK, first.DataSrc)

	// Сообщение без ссылки на профиль принадлежит владельцу экспорта
	own := chat.Messages[1]
	assert.Equal(t, int64(42), own.FromIDOrig)
	assert.Equal(t, "Ответ", own.Text)

	// Сообщество кодируется отрицательным ID; пометка ред. дает дату правки
	edited := chat.Messages[2]
	assert.Equal(t, int64(-900), edited.FromIDOrig)
	assert.Equal(t, time.Date(2021, 1, 14, 11, 5, 0, 0, time.Local).Unix(), edited.Edited)
	require.Len(t, edited.Attachments, 1)
	assert.Equal(t, database.AttachmentPhoto, edited.Attachments[0].Type)
	assert.Equal(t, "https://vk.com/photo1", edited.Attachments[0].URL)

	// Служебное сообщение
	service := chat.Messages[3]
	assert.True(t, service.IsServiceMsg)
	assert.Equal(t, "Алиса создала беседу", service.Text)

	// Пересланные сообщения: доступно только количество
	fwd := chat.Messages[4]
	require.Len(t, fwd.FwdMessages, 1)
	assert.Equal(t, 2, fwd.FwdMessages[0].Count)

	// Словарь пользователей: автор, сообщество и владелец экспорта
	usernames := parser.Usernames()
	assert.Equal(t, "Алиса", usernames[77])
	assert.Equal(t, "Сообщество", usernames[-900])
	assert.Equal(t, "Вы", usernames[42])
}

func TestVKhtmlParseDate(t *testing.T) {
	parser := &VKhtmlParser{logger: utils.NewDiscardLogger()}

	ts, edited := parser.parseDate("12 янв 2021 в 15:04:05")
	assert.Equal(t, time.Date(2021, 1, 12, 15, 4, 5, 0, time.Local).Unix(), ts)
	assert.False(t, edited)

	ts, edited = parser.parseDate("1 мая 2020 в 00:30:59 (ред.)")
	assert.Equal(t, time.Date(2020, 5, 1, 0, 30, 59, 0, time.Local).Unix(), ts)
	assert.True(t, edited)

	// Невалидные даты дают ноль, а не панику
	ts, edited = parser.parseDate("вчера")
	assert.Zero(t, ts)
	assert.False(t, edited)

	ts, _ = parser.parseDate("12 xyz 2021 в 15:04:05")
	assert.Zero(t, ts)
}

func TestVKhtmlUnknownAttachment(t *testing.T) {
	page := `<html><body>
<div class="message" data-id="1">
  <div class="message__header"><a href="https://vk.com/id77">Алиса</a>, 12 янв 2021 в 15:04:05</div>
  <div>
    <div class="kludges"><div class="attachment"><div class="attachment__description">Нечто странное</div></div></div>
  </div>
</div>
</body></html>`

	dir := t.TempDir()
	chatDir := filepath.Join(dir, "55")
	require.NoError(t, os.MkdirAll(chatDir, 0755))
	writeCP1251(t, filepath.Join(chatDir, "messages0.html"), page)

	parser, err := NewVKhtmlParser(dir, 1, utils.NewDiscardLogger())
	require.NoError(t, err)

	chats, err := parser.ProcessDataEntry(DataEntry{ChatCount: 1, Name: "Чат", Path: filepath.ToSlash(chatDir)})
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Len(t, chats[0].Messages, 1)

	att := chats[0].Messages[0].Attachments
	require.Len(t, att, 1)
	assert.Equal(t, database.AttachmentUnknown, att[0].Type)
	assert.Equal(t, "Нечто странное", att[0].Misc)
}

func TestVKhtmlVoiceMessage(t *testing.T) {
	parser := &VKhtmlParser{logger: utils.NewDiscardLogger()}
	_ = parser

	// Файлы .ogg в экспорте — голосовые сообщения
	page := `<div class="attachment"><div class="attachment__description">Файл</div><a class="attachment__link" href="https://vk.com/doc1/audio_message.ogg">Ссылка</a></div>`
	doc := mustParseFragment(t, page)

	attachments, fwd := parser.parseAttachments(doc.Find("div.attachment"))
	require.Len(t, attachments, 1)
	assert.Nil(t, fwd)
	assert.Equal(t, database.AttachmentVoiceMessage, attachments[0].Type)
}
