// database/id_binder.go
package database

import (
	"fmt"
	"time"
)

// UnresolvedCounts содержит количество сообщений, оставшихся без привязки
// после выполнения BindForeignKeys
type UnresolvedCounts struct {
	FromID int `json:"from_id"`
	ChatID int `json:"chat_id"`
}

// BindForeignKeys проставляет глобальные chat_id и from_id для всех
// сообщений, у которых они еще не заполнены. Оба прохода чисто
// множественные: условие IS NULL одновременно выбирает необработанные
// строки и гарантирует идемпотентность — уже привязанные строки не
// затрагиваются. Сообщение без совпадения остается непривязанным,
// это не ошибка.
func (s *Store) BindForeignKeys() error {
	startTime := time.Now()
	s.logger.Debug("Начало привязки глобальных ID")

	// data_src в подзапросах обязателен: одинаковые исходные ID из разных
	// мессенджеров обозначают разных пользователей и разные чаты
	updateFromID := `
		UPDATE messages
		SET from_id = (
			SELECT user_id FROM usernames
			WHERE usernames.orig_id = messages.from_id_orig
			  AND usernames.data_src = messages.data_src)
		WHERE from_id IS NULL AND from_id_orig IS NOT NULL
	`
	updateChatID := `
		UPDATE messages
		SET chat_id = (
			SELECT chat_id FROM chats
			WHERE chats.chat_id_orig = messages.chat_id_orig
			  AND chats.data_src = messages.data_src)
		WHERE chat_id IS NULL
	`

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	if _, err := tx.Exec(updateFromID); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при привязке from_id: %w", err)
	}
	if _, err := tx.Exec(updateChatID); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при привязке chat_id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	s.logger.Debug("Привязка глобальных ID завершена. Длительность: %v", time.Since(startTime))
	return nil
}

// CountUnresolved возвращает количество сообщений, у которых после привязки
// остались пустые from_id или chat_id. Ненулевые значения — повод проверить
// исходные данные, но не ошибка: повторный импорт может допривязать их.
func (s *Store) CountUnresolved() (UnresolvedCounts, error) {
	var counts UnresolvedCounts

	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM messages WHERE from_id IS NULL AND from_id_orig IS NOT NULL
	`).Scan(&counts.FromID)
	if err != nil {
		return counts, fmt.Errorf("ошибка при подсчете непривязанных from_id: %w", err)
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE chat_id IS NULL`).Scan(&counts.ChatID)
	if err != nil {
		return counts, fmt.Errorf("ошибка при подсчете непривязанных chat_id: %w", err)
	}

	return counts, nil
}
