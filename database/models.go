// database/models.go
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Source обозначает мессенджер, из которого получен экспорт.
// Числовые значения хранятся в колонке data_src и не меняются между версиями.
type Source int

const (
	SourceVK Source = 1
	SourceTG Source = 2
	SourceWA Source = 3
)

// ParseSource преобразует короткий тег источника в Source
func ParseSource(tag string) (Source, error) {
	switch tag {
	case "vk":
		return SourceVK, nil
	case "tg":
		return SourceTG, nil
	case "wa":
		return SourceWA, nil
	}
	return 0, fmt.Errorf("неизвестный источник данных: %q", tag)
}

func (s Source) String() string {
	switch s {
	case SourceVK:
		return "vk"
	case SourceTG:
		return "tg"
	case SourceWA:
		return "wa"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// AttachmentType задает закрытый набор типов вложений.
// Имена типов едины для всех парсеров: tgjson приводит audio_file/video_file
// к audio/video, vkhtml переводит русские описания в эти же имена.
type AttachmentType string

const (
	AttachmentPhoto         AttachmentType = "photo"
	AttachmentVideo         AttachmentType = "video"
	AttachmentAudio         AttachmentType = "audio"
	AttachmentVoiceMessage  AttachmentType = "voice_message"
	AttachmentSticker       AttachmentType = "sticker"
	AttachmentFile          AttachmentType = "file"
	AttachmentAnimation     AttachmentType = "animation"
	AttachmentWallPost      AttachmentType = "wall_post"
	AttachmentWallComment   AttachmentType = "wall_comment"
	AttachmentLink          AttachmentType = "link"
	AttachmentArticle       AttachmentType = "article"
	AttachmentMap           AttachmentType = "map"
	AttachmentPoll          AttachmentType = "poll"
	AttachmentGift          AttachmentType = "gift"
	AttachmentStory         AttachmentType = "story"
	AttachmentPlaylist      AttachmentType = "playlist"
	AttachmentPhotoAlbum    AttachmentType = "photo_album"
	AttachmentPhoneCall     AttachmentType = "phone_call"
	AttachmentMarketItem    AttachmentType = "market_item"
	AttachmentMoneyTransfer AttachmentType = "money_transfer"
	AttachmentMoneyRequest  AttachmentType = "money_request"
	AttachmentDeletedMsg    AttachmentType = "deleted_msg"
	AttachmentUnknown       AttachmentType = "unknown"
)

// Attachment описывает одно вложение сообщения.
// Поля опциональны: каждый источник заполняет свой поднабор.
type Attachment struct {
	Type            AttachmentType  `json:"type"`
	URL             string          `json:"url,omitempty"`
	LocalPath       string          `json:"local_path,omitempty"`
	FileName        string          `json:"file_name,omitempty"`
	FileSize        int64           `json:"file_size,omitempty"`
	Width           int             `json:"width,omitempty"`
	Height          int             `json:"height,omitempty"`
	DurationSeconds int             `json:"duration_seconds,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	Misc            string          `json:"misc,omitempty"`
}

// FwdMessage описывает пересланное сообщение, вложенное в основное.
// Хранится только исходный ID автора: к глобальному user_id пересланные
// сообщения не привязываются, имя автора доступно через таблицу usernames.
type FwdMessage struct {
	FromIDOrig  int64        `json:"from_id_orig,omitempty"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	// Count заполняется только VK-парсером: из HTML-экспорта можно
	// восстановить лишь количество прикрепленных сообщений
	Count int `json:"count,omitempty"`
}

// Message представляет одно сообщение в каноническом виде.
// ChatID и FromID остаются пустыми до запуска BindForeignKeys.
type Message struct {
	MsgID         int64
	ChatID        sql.NullInt64
	FromID        sql.NullInt64
	Date          int64
	Text          string
	Attachments   []Attachment
	FwdMessages   []FwdMessage
	IsServiceMsg  bool
	ServiceData   json.RawMessage
	Edited        int64 // 0 — сообщение не редактировалось
	HasFormatting bool
	ReplyToIDOrig int64
	MsgIDOrig     int64
	ChatIDOrig    int64
	FromIDOrig    int64
	DataSrc       Source
}

// Chat представляет одну строку таблицы chats
type Chat struct {
	ChatID      int64
	ChatName    string
	LastMsgDate int64
	MsgCount    int
	ChatIDOrig  int64
	DataSrc     Source
}

// User представляет одну строку таблицы usernames.
// OrigID знаковый: отрицательные значения кодируют сообщества и каналы
type User struct {
	UserID  int64
	Name    string
	OrigID  int64
	DataSrc Source
}

// ChatObject — дескриптор чата, который парсер передает в IngestChat
type ChatObject struct {
	IDOrig   int64
	Name     string
	PeerType string
	Messages []Message
}

// encodeAttachments сериализует вложения в JSON для хранения в БД
func encodeAttachments(attachments []Attachment) (sql.NullString, error) {
	if len(attachments) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(attachments)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("ошибка при сериализации вложений: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// encodeFwdMessages сериализует пересланные сообщения в JSON для хранения в БД
func encodeFwdMessages(fwd []FwdMessage) (sql.NullString, error) {
	if len(fwd) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(fwd)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("ошибка при сериализации пересланных сообщений: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
