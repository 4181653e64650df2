// database/message_insert.go
package database

import (
	"database/sql"
	"fmt"
	"time"
)

// InsertMessages вставляет пакет сообщений как есть: chat_id и from_id
// остаются NULL до запуска BindForeignKeys. Записи без обязательных полей
// пропускаются, уже вставленные строки при этом не откатываются;
// возвращается количество вставленных строк и первая ошибка валидации.
func (s *Store) InsertMessages(messages []Message) (int, error) {
	if len(messages) == 0 {
		s.logger.Debug("Нет сообщений для вставки")
		return 0, nil
	}

	startTime := time.Now()
	s.logger.Debug("Начало вставки сообщений (всего: %d)", len(messages))

	stmt, err := s.db.Prepare(`
		INSERT INTO messages
		(date, text, attachments, fwd_messages, is_service_msg, service_msg_data,
		edited, has_formatting, reply_to_id_orig, msg_id_orig, chat_id_orig, from_id_orig, data_src)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	// Начинаем транзакцию
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	// Подготавливаем запрос в транзакции
	txStmt := tx.Stmt(stmt)
	defer txStmt.Close()

	inserted := 0
	batch := 0
	var firstValidationErr error

	for i := range messages {
		msg := &messages[i]

		// Проверяем обязательные поля до вставки: невалидная запись
		// пропускается, остальные строки пакета не затрагиваются
		if err := validateMessage(msg); err != nil {
			s.logger.Error("Пропуск сообщения: %v", err)
			if firstValidationErr == nil {
				firstValidationErr = err
			}
			continue
		}

		attachments, err := encodeAttachments(msg.Attachments)
		if err != nil {
			tx.Rollback()
			return inserted, err
		}
		fwdMessages, err := encodeFwdMessages(msg.FwdMessages)
		if err != nil {
			tx.Rollback()
			return inserted, err
		}

		var serviceData sql.NullString
		if len(msg.ServiceData) > 0 {
			serviceData = sql.NullString{String: string(msg.ServiceData), Valid: true}
		}

		var replyTo, fromOrig sql.NullInt64
		if msg.ReplyToIDOrig != 0 {
			replyTo = sql.NullInt64{Int64: msg.ReplyToIDOrig, Valid: true}
		}
		if msg.FromIDOrig != 0 {
			fromOrig = sql.NullInt64{Int64: msg.FromIDOrig, Valid: true}
		}

		_, err = txStmt.Exec(
			msg.Date,
			msg.Text,
			attachments,
			fwdMessages,
			msg.IsServiceMsg,
			serviceData,
			msg.Edited,
			msg.HasFormatting,
			replyTo,
			msg.MsgIDOrig,
			msg.ChatIDOrig,
			fromOrig,
			int(msg.DataSrc),
		)
		if err != nil {
			tx.Rollback()
			return inserted, fmt.Errorf("ошибка при вставке сообщения %d: %w", msg.MsgIDOrig, err)
		}

		inserted++
		batch++

		// Если достигли размера пакета, фиксируем транзакцию и начинаем новую
		if batch >= s.batchSize {
			if err := tx.Commit(); err != nil {
				tx.Rollback()
				return inserted, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
			}

			s.logger.Debug("Вставлено %d из %d сообщений...", inserted, len(messages))

			tx, err = s.db.Begin()
			if err != nil {
				return inserted, fmt.Errorf("ошибка при начале новой транзакции: %w", err)
			}
			txStmt = tx.Stmt(stmt)
			batch = 0
		}
	}

	// Фиксируем последнюю транзакцию
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return inserted, fmt.Errorf("ошибка при фиксации последней транзакции: %w", err)
	}

	s.msgCounter += inserted
	s.logger.Debug("Вставка сообщений завершена. Вставлено: %d. Длительность: %v", inserted, time.Since(startTime))

	return inserted, firstValidationErr
}
