// database/runlog.go
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStats содержит итоговые счетчики одного запуска импорта
type RunStats struct {
	ChatsProcessed   int `json:"chats_processed"`
	ChatsSkipped     int `json:"chats_skipped"`
	MessagesInserted int `json:"messages_inserted"`
	UsersInserted    int `json:"users_inserted"`
	UnresolvedFromID int `json:"unresolved_from_id"`
	UnresolvedChatID int `json:"unresolved_chat_id"`
}

// RunLog — одна запись журнала запусков импорта
type RunLog struct {
	ID           string    `json:"id"`
	DataSrc      Source    `json:"data_src"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
	Stats        RunStats  `json:"stats"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// CreateRunLogTable создает таблицу журнала запусков, если она не существует
func (s *Store) CreateRunLogTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS merge_run_log (
		id TEXT PRIMARY KEY,
		data_src INTEGER NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		status TEXT NOT NULL DEFAULT 'in_progress',
		chats_processed INTEGER DEFAULT 0,
		chats_skipped INTEGER DEFAULT 0,
		messages_inserted INTEGER DEFAULT 0,
		users_inserted INTEGER DEFAULT 0,
		unresolved_from_id INTEGER DEFAULT 0,
		unresolved_chat_id INTEGER DEFAULT 0,
		error_message TEXT
	)
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка при создании таблицы merge_run_log: %w", err)
	}
	return nil
}

// StartRun создает запись о начале запуска и возвращает ее идентификатор
func (s *Store) StartRun(src Source) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO merge_run_log (id, data_src, start_time, status)
		VALUES (?, ?, ?, 'in_progress')
	`, runID, int(src), time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("ошибка при создании записи в журнале запусков: %w", err)
	}
	return runID, nil
}

// FinishRunSuccess помечает запуск успешным и сохраняет счетчики
func (s *Store) FinishRunSuccess(runID string, stats RunStats) error {
	_, err := s.db.Exec(`
		UPDATE merge_run_log
		SET end_time = ?, status = 'success',
			chats_processed = ?, chats_skipped = ?, messages_inserted = ?,
			users_inserted = ?, unresolved_from_id = ?, unresolved_chat_id = ?
		WHERE id = ?
	`, time.Now().Unix(), stats.ChatsProcessed, stats.ChatsSkipped, stats.MessagesInserted,
		stats.UsersInserted, stats.UnresolvedFromID, stats.UnresolvedChatID, runID)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи в журнале запусков: %w", err)
	}
	return nil
}

// FinishRunFailure помечает запуск неуспешным и сохраняет текст ошибки
func (s *Store) FinishRunFailure(runID string, errorMessage string) error {
	_, err := s.db.Exec(`
		UPDATE merge_run_log
		SET end_time = ?, status = 'failed', error_message = ?
		WHERE id = ?
	`, time.Now().Unix(), errorMessage, runID)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи в журнале запусков: %w", err)
	}
	return nil
}

// LastRuns возвращает последние записи журнала запусков
func (s *Store) LastRuns(limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT id, data_src, start_time, end_time, status,
			chats_processed, chats_skipped, messages_inserted,
			users_inserted, unresolved_from_id, unresolved_chat_id, error_message
		FROM merge_run_log
		ORDER BY start_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении журнала запусков: %w", err)
	}
	defer rows.Close()

	var runs []RunLog
	for rows.Next() {
		var run RunLog
		var dataSrc int
		var startTime int64
		var endTime sql.NullInt64
		var errorMessage sql.NullString
		err := rows.Scan(&run.ID, &dataSrc, &startTime, &endTime, &run.Status,
			&run.Stats.ChatsProcessed, &run.Stats.ChatsSkipped, &run.Stats.MessagesInserted,
			&run.Stats.UsersInserted, &run.Stats.UnresolvedFromID, &run.Stats.UnresolvedChatID,
			&errorMessage)
		if err != nil {
			return nil, fmt.Errorf("ошибка при чтении журнала запусков: %w", err)
		}
		run.DataSrc = Source(dataSrc)
		run.StartTime = time.Unix(startTime, 0)
		if endTime.Valid {
			run.EndTime = time.Unix(endTime.Int64, 0)
		}
		run.ErrorMessage = errorMessage.String
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при чтении журнала запусков: %w", err)
	}

	return runs, nil
}
