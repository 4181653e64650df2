// database/schema.go
package database

import (
	"fmt"
)

// CreateSchema создает таблицы chats, messages, usernames и представление
// messages_view. Вызов идемпотентен: если таблица messages уже существует,
// схема считается созданной и функция ничего не делает.
func (s *Store) CreateSchema() error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'messages')
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка при проверке существования схемы: %w", err)
	}

	if exists {
		s.logger.Debug("Схема уже существует, пропускаем создание")
		return nil
	}

	s.logger.Info("Создание схемы базы данных")

	schema := []string{
		`CREATE TABLE chats (
			chat_id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_name TEXT,
			last_msg_date INTEGER,
			msg_count INTEGER,
			chat_id_orig INTEGER NOT NULL,
			data_src INTEGER NOT NULL
		)`,
		// Пара (chat_id_orig, data_src) уникальна: повторный импорт того же
		// чата из того же источника не должен создавать дубликат
		`CREATE UNIQUE INDEX idx_chats_orig_src ON chats (chat_id_orig, data_src)`,
		`CREATE TABLE messages (
			msg_id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER,
			from_id INTEGER,
			date INTEGER NOT NULL,
			text TEXT,
			attachments TEXT,
			fwd_messages TEXT,
			is_service_msg INTEGER NOT NULL DEFAULT 0,
			service_msg_data TEXT,
			edited INTEGER NOT NULL DEFAULT 0,
			has_formatting INTEGER NOT NULL DEFAULT 0,
			reply_to_id_orig INTEGER,
			msg_id_orig INTEGER NOT NULL,
			chat_id_orig INTEGER NOT NULL,
			from_id_orig INTEGER,
			data_src INTEGER NOT NULL
		)`,
		`CREATE INDEX idx_messages_from_orig ON messages (from_id_orig, data_src)`,
		`CREATE INDEX idx_messages_chat_orig ON messages (chat_id_orig, data_src)`,
		`CREATE TABLE usernames (
			user_id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			orig_id INTEGER NOT NULL,
			data_src INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_usernames_orig_src ON usernames (orig_id, data_src)`,
		// LEFT JOIN вместо JOIN: сообщения с непривязанными ID остаются
		// видимыми с пустым именем чата или автора
		`CREATE VIEW messages_view AS
			SELECT chats.chat_name AS chat_name,
				datetime(messages.date, 'unixepoch', 'localtime') AS date,
				usernames.name AS from_name,
				messages.text AS text,
				messages.attachments AS attachments,
				messages.fwd_messages AS fwd_messages,
				messages.data_src AS data_src
			FROM messages
			LEFT JOIN chats ON messages.chat_id = chats.chat_id
			LEFT JOIN usernames ON messages.from_id = usernames.user_id
			ORDER BY messages.date`,
	}

	for _, query := range schema {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("ошибка при создании схемы: %w", err)
		}
	}

	s.logger.Info("Схема базы данных создана")
	return nil
}
