// database/chat_insert.go
package database

import (
	"fmt"
)

// chatExists проверяет, есть ли в базе чат с парой (chat_id_orig, data_src)
func (s *Store) chatExists(chatIDOrig int64, src Source) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM chats WHERE chat_id_orig = ? AND data_src = ?)
	`, chatIDOrig, int(src)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка при проверке существования чата: %w", err)
	}
	return exists, nil
}

// InsertChat вставляет строку чата, вычисляя last_msg_date и msg_count
// по списку его сообщений. Чат без сообщений допустим: last_msg_date
// остается нулевым.
func (s *Store) InsertChat(chat *ChatObject, src Source) error {
	if chat.IDOrig == 0 {
		return &ValidationError{Entity: "chat", Field: "chat_id_orig"}
	}

	var lastMsgDate int64
	for i := range chat.Messages {
		if chat.Messages[i].Date > lastMsgDate {
			lastMsgDate = chat.Messages[i].Date
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO chats (chat_name, last_msg_date, msg_count, chat_id_orig, data_src)
		VALUES (?, ?, ?, ?, ?)
	`, chat.Name, lastMsgDate, len(chat.Messages), chat.IDOrig, int(src))
	if err != nil {
		return fmt.Errorf("ошибка при вставке чата %q: %w", chat.Name, err)
	}

	return nil
}

// IngestChat вставляет один чат вместе со всеми его сообщениями.
// Если пара (chat_id_orig, data_src) уже известна, чат пропускается целиком
// (включая сообщения) и возвращается ErrDuplicateChat: повторная вставка
// сообщений задваивала бы каждую строку в представлении.
func (s *Store) IngestChat(chat *ChatObject, src Source) (int, error) {
	exists, err := s.chatExists(chat.IDOrig, src)
	if err != nil {
		return 0, err
	}
	if exists {
		s.logger.Debug("Чат %q (%d, %s) уже импортирован, пропускаем", chat.Name, chat.IDOrig, src)
		return 0, ErrDuplicateChat
	}

	inserted, err := s.InsertMessages(chat.Messages)
	if err != nil {
		// Ошибки валидации отдельных сообщений не мешают вставить сам чат
		if _, ok := err.(*ValidationError); !ok {
			return inserted, err
		}
	}
	valErr := err

	if err := s.InsertChat(chat, src); err != nil {
		return inserted, err
	}

	return inserted, valErr
}
