package parsers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/LilVoxy/mulmes2sqlite/database"
	"github.com/LilVoxy/mulmes2sqlite/utils"
)

// Маркеры файлов, не включенных в экспорт Telegram
var tgNotIncludedStrs = []string{
	"(File not included. Change data exporting settings to download.)",
	"(File exceeds maximum size. Change data exporting settings to download.)",
	"(File unavailable, please try again later)",
}

// Приведение типов чатов Telegram к единым именам
var tgPeerTypes = map[string]string{
	"verification_codes": "service",
	"personal_chat":      "user",
	"bot_chat":           "bot",
	"private_group":      "group_chat",
	"private_supergroup": "group_chat",
	"public_supergroup":  "group_chat",
	"private_channel":    "channel",
	"public_channel":     "channel",
}

// Типы текстовых фрагментов, которые переносятся как простой текст
var tgPlainTxtTypes = map[string]bool{
	"plain":        true,
	"hashtag":      true,
	"custom_emoji": true,
	"bot_command":  true,
	"phone":        true,
}

// Преобразование форматирования Telegram в HTML-теги
var tgFormattedTxtTypes = map[string]string{
	"bold":          "b",
	"italic":        "i",
	"spoiler":       "details",
	"strikethrough": "s",
	"blockquote":    "blockquote",
	"code":          "tt",
	"pre":           "tt",
}

type tgTextEntity struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

type tgMessage struct {
	ID               int64           `json:"id"`
	Type             string          `json:"type"`
	DateUnixtime     string          `json:"date_unixtime"`
	EditedUnixtime   string          `json:"edited_unixtime"`
	From             string          `json:"from"`
	FromID           string          `json:"from_id"`
	Actor            string          `json:"actor"`
	ActorID          string          `json:"actor_id"`
	Action           string          `json:"action"`
	Title            string          `json:"title"`
	Members          []string        `json:"members"`
	MessageID        int64           `json:"message_id"`
	ReplyToMessageID int64           `json:"reply_to_message_id"`
	TextEntities     []tgTextEntity  `json:"text_entities"`
	StickerEmoji     string          `json:"sticker_emoji"`
	MediaType        string          `json:"media_type"`
	File             string          `json:"file"`
	FileName         string          `json:"file_name"`
	FileSize         int64           `json:"file_size"`
	Photo            string          `json:"photo"`
	PhotoFileSize    int64           `json:"photo_file_size"`
	Width            int             `json:"width"`
	Height           int             `json:"height"`
	DurationSeconds  int             `json:"duration_seconds"`
	Poll             json.RawMessage `json:"poll"`
	ForwardedFrom    string          `json:"forwarded_from"`
	ForwardedFromID  string          `json:"forwarded_from_id"`
}

type tgChat struct {
	ID       int64       `json:"id"`
	Type     string      `json:"type"`
	Name     string      `json:"name"`
	Messages []tgMessage `json:"messages"`
}

type tgExport struct {
	Name     string      `json:"name"`
	ID       int64       `json:"id"`
	Type     string      `json:"type"`
	Messages []tgMessage `json:"messages"`
	Chats    *struct {
		List []tgChat `json:"list"`
	} `json:"chats"`
}

// TGjsonParser разбирает JSON-экспорт Telegram (result.json)
type TGjsonParser struct {
	inp       *InputHandler
	logger    *utils.MergeLogger
	usernames map[int64]string
}

// NewTGjsonParser создает парсер Telegram-экспорта для указанного входа
func NewTGjsonParser(inputPath string, logger *utils.MergeLogger) (*TGjsonParser, error) {
	inp, err := NewInputHandler(inputPath, nil, ".json")
	if err != nil {
		return nil, err
	}
	return &TGjsonParser{
		inp:       inp,
		logger:    logger,
		usernames: make(map[int64]string),
	}, nil
}

// Source возвращает тег источника
func (p *TGjsonParser) Source() database.Source {
	return database.SourceTG
}

// Usernames возвращает накопленный словарь пользователей
func (p *TGjsonParser) Usernames() map[int64]string {
	return p.usernames
}

// CreateDataEntries ищет файлы result.json и определяет, что в них:
// полный экспорт со списком чатов или экспорт одного чата
func (p *TGjsonParser) CreateDataEntries() ([]DataEntry, error) {
	var entries []DataEntry

	fullFileList, err := p.inp.FileList()
	if err != nil {
		return nil, err
	}

	for _, filename := range fullFileList {
		if !strings.HasSuffix(filename, "result.json") {
			continue
		}

		rawJSON, err := p.inp.ReadFile(filename)
		if err != nil {
			p.logger.Error("Пропуск файла %s: %v", filename, err)
			continue
		}

		var export tgExport
		if err := json.Unmarshal([]byte(rawJSON), &export); err != nil {
			p.logger.Error("Пропуск файла %s: %v", filename, err)
			continue
		}

		var entry DataEntry
		if export.Chats != nil {
			chatCount := len(export.Chats.List)
			entry = DataEntry{
				ChatCount: chatCount,
				Name:      fmt.Sprintf("Полный экспорт (%d чатов)", chatCount),
				Path:      filename,
			}
		} else if export.Messages != nil {
			entry = DataEntry{ChatCount: 1, Name: export.Name, Path: filename}
		} else {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ProcessDataEntry разбирает один result.json в список дескрипторов чатов
func (p *TGjsonParser) ProcessDataEntry(entry DataEntry) ([]*database.ChatObject, error) {
	rawJSON, err := p.inp.ReadFile(entry.Path)
	if err != nil {
		return nil, err
	}

	var export tgExport
	if err := json.Unmarshal([]byte(rawJSON), &export); err != nil {
		return nil, fmt.Errorf("ошибка при разборе файла %s: %w", entry.Path, err)
	}

	var chats []*database.ChatObject
	if entry.ChatCount == 1 && export.Chats == nil {
		single := tgChat{ID: export.ID, Type: export.Type, Name: export.Name, Messages: export.Messages}
		chats = append(chats, p.processSingleChat(&single))
	} else if export.Chats != nil {
		for i := range export.Chats.List {
			chats = append(chats, p.processSingleChat(&export.Chats.List[i]))
		}
	}

	return chats, nil
}

// processSingleChat превращает один чат экспорта в дескриптор ChatObject
func (p *TGjsonParser) processSingleChat(chat *tgChat) *database.ChatObject {
	peerType, ok := tgPeerTypes[chat.Type]
	if !ok {
		peerType = chat.Type
	}

	chatName := chat.Name
	if chatName == "" {
		chatName = "DELETED"
	}

	msgList := make([]database.Message, 0, len(chat.Messages))
	for i := range chat.Messages {
		if msg, ok := p.processSingleMessage(&chat.Messages[i], chat.ID); ok {
			msgList = append(msgList, msg)
		}
	}

	return &database.ChatObject{
		IDOrig:   chat.ID,
		PeerType: peerType,
		Name:     chatName,
		Messages: msgList,
	}
}

// processSingleMessage превращает одно сообщение экспорта в каноническую запись
func (p *TGjsonParser) processSingleMessage(msg *tgMessage, chatID int64) (database.Message, bool) {
	var out database.Message
	var msgText string

	switch msg.Type {
	case "message":
		out.IsServiceMsg = false
		out.FromIDOrig = p.parseUser(msg.FromID, msg.From)
		msgText, out.HasFormatting = p.parseMsgText(msg)
		out.ReplyToIDOrig = msg.ReplyToMessageID
	case "service":
		out.IsServiceMsg = true
		out.FromIDOrig = p.parseUser(msg.ActorID, msg.Actor)
		msgText, out.ServiceData = p.parseServiceMsg(msg)
		out.ReplyToIDOrig = msg.MessageID
	default:
		return out, false
	}

	out.MsgIDOrig = msg.ID
	out.ChatIDOrig = chatID
	out.Date, out.Edited = p.parseDate(msg)
	out.DataSrc = database.SourceTG

	attachments := p.parseAttachments(msg)
	fwdFromID := p.parseFwdFromID(msg)
	if fwdFromID == 0 {
		out.Text = msgText
		out.Attachments = attachments
	} else {
		out.Text = ""
		out.FwdMessages = []database.FwdMessage{{
			FromIDOrig:  fwdFromID,
			Text:        msgText,
			Attachments: attachments,
		}}
	}

	return out, true
}

// parseUser превращает строковый ID Telegram в знаковое число и запоминает
// имя пользователя. Каналы кодируются отрицательными значениями.
func (p *TGjsonParser) parseUser(userIDStr, username string) int64 {
	if username == "" {
		username = "DELETED"
	}

	var digits strings.Builder
	for _, r := range userIDStr {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	id, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		p.logger.Error("Ошибка: не удалось разобрать ID пользователя %q", userIDStr)
		return 0
	}

	var userID int64
	switch {
	case strings.HasPrefix(userIDStr, "user"):
		userID = id
	case strings.HasPrefix(userIDStr, "chan"): // 'channel'
		userID = -id
	default:
		p.logger.Error("Ошибка: неизвестный префикс ID пользователя %q", userIDStr)
		return 0
	}

	p.usernames[userID] = username
	return userID
}

// parseDate возвращает дату сообщения и дату редактирования (0 — не редактировалось)
func (p *TGjsonParser) parseDate(msg *tgMessage) (int64, int64) {
	date, _ := strconv.ParseInt(msg.DateUnixtime, 10, 64)
	var edited int64
	if msg.EditedUnixtime != "" {
		edited, _ = strconv.ParseInt(msg.EditedUnixtime, 10, 64)
	}
	return date, edited
}

// parseMsgText склеивает текстовые фрагменты, переводя форматирование в HTML
func (p *TGjsonParser) parseMsgText(msg *tgMessage) (string, bool) {
	var b strings.Builder
	hasFormatting := false

	for _, e := range msg.TextEntities {
		if tgPlainTxtTypes[e.Type] {
			b.WriteString(e.Text)
			continue
		}

		hasFormatting = true
		if tag, ok := tgFormattedTxtTypes[e.Type]; ok {
			fmt.Fprintf(&b, "<%s>%s</%s>", tag, e.Text, tag)
		} else if e.Type == "link" {
			fmt.Fprintf(&b, "<a href=%q>%s</a>", e.Text, e.Text)
		} else if e.Type == "text_link" {
			fmt.Fprintf(&b, "<a href=%q>%s</a>", e.Href, e.Text)
		} else if e.Type == "mention" {
			href := "https://t.me/" + strings.TrimPrefix(e.Text, "@")
			fmt.Fprintf(&b, "<a href=%q>%s</a>", href, e.Text)
		} else {
			b.WriteString(e.Text)
			p.logger.Error("Неизвестный тип форматирования %s", e.Type)
		}
	}

	msgText := b.String()
	if msgText == "" && msg.StickerEmoji != "" {
		msgText = msg.StickerEmoji
	}
	return msgText, hasFormatting
}

// parseAttachments собирает вложения сообщения в канонический вид
func (p *TGjsonParser) parseAttachments(msg *tgMessage) []database.Attachment {
	var att database.Attachment

	switch {
	case msg.MediaType != "":
		att.Type = database.AttachmentType(msg.MediaType)
		att.LocalPath = msg.File
	case msg.Photo != "":
		att.Type = database.AttachmentPhoto
		att.LocalPath = msg.Photo
		att.FileSize = msg.PhotoFileSize
	case msg.File != "":
		att.Type = database.AttachmentFile
		att.LocalPath = msg.File
	case len(msg.Poll) > 0:
		att.Type = database.AttachmentPoll
		att.Data = msg.Poll
	default:
		return nil
	}

	for _, marker := range tgNotIncludedStrs {
		if att.LocalPath == marker {
			att.LocalPath = "not_included"
			break
		}
	}

	// audio_file -> audio, video_file -> video: единые имена типов
	// для tgjson и vkhtml
	if strings.Contains(string(att.Type), "_file") {
		att.Type = database.AttachmentType(strings.ReplaceAll(string(att.Type), "_file", ""))
	}

	att.FileName = msg.FileName
	if att.FileSize == 0 {
		att.FileSize = msg.FileSize
	}
	att.Width = msg.Width
	att.Height = msg.Height
	att.DurationSeconds = msg.DurationSeconds

	return []database.Attachment{att}
}

// parseFwdFromID возвращает исходный ID автора пересланного сообщения
// (0, если сообщение не переслано)
func (p *TGjsonParser) parseFwdFromID(msg *tgMessage) int64 {
	if msg.ForwardedFromID == "" {
		return 0
	}
	return p.parseUser(msg.ForwardedFromID, msg.ForwardedFrom)
}

type tgServiceMember struct {
	Username string `json:"username"`
}

type tgServiceData struct {
	Title    string            `json:"title,omitempty"`
	Username string            `json:"username,omitempty"`
	Members  []tgServiceMember `json:"members,omitempty"`
}

// parseServiceMsg разбирает служебное сообщение: текстом становится действие,
// детали (название чата, участники) уходят в service_msg_data
func (p *TGjsonParser) parseServiceMsg(msg *tgMessage) (string, json.RawMessage) {
	actionText := msg.Action
	var data tgServiceData

	data.Title = msg.Title
	if len(msg.Members) > 0 {
		if len(msg.Members) == 1 && data.Title == "" {
			data.Username = msg.Members[0]
		} else {
			// Для действия create_group сохраняем весь список участников
			for _, m := range msg.Members {
				data.Members = append(data.Members, tgServiceMember{Username: m})
			}
		}
		if actionText == "remove_members" && msg.Members[0] == msg.Actor {
			actionText = "leave_chat"
			data = tgServiceData{}
		}
	}

	if data.Title == "" && data.Username == "" && len(data.Members) == 0 {
		return actionText, nil
	}
	encoded, err := json.Marshal(&data)
	if err != nil {
		p.logger.Error("Ошибка при сериализации служебного сообщения: %v", err)
		return actionText, nil
	}
	return actionText, encoded
}
