// database/lookup.go
package database

import (
	"database/sql"
	"fmt"
)

// LookupUserID возвращает глобальный user_id по паре (orig_id, data_src).
// Второе возвращаемое значение false означает, что пользователь неизвестен.
func (s *Store) LookupUserID(src Source, origID int64) (int64, bool, error) {
	var userID int64
	err := s.db.QueryRow(`
		SELECT user_id FROM usernames WHERE orig_id = ? AND data_src = ?
	`, origID, int(src)).Scan(&userID)

	if err == sql.ErrNoRows {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("ошибка при поиске пользователя %d (%s): %w", origID, src, err)
	}

	return userID, true, nil
}

// LookupChatID возвращает глобальный chat_id по паре (chat_id_orig, data_src)
func (s *Store) LookupChatID(src Source, chatIDOrig int64) (int64, bool, error) {
	var chatID int64
	err := s.db.QueryRow(`
		SELECT chat_id FROM chats WHERE chat_id_orig = ? AND data_src = ?
	`, chatIDOrig, int(src)).Scan(&chatID)

	if err == sql.ErrNoRows {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("ошибка при поиске чата %d (%s): %w", chatIDOrig, src, err)
	}

	return chatID, true, nil
}
