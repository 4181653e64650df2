// database/user_resolver.go
package database

import (
	"fmt"
	"time"
)

// ResolveIdentities сверяет словарь (orig_id -> имя) одного источника
// с таблицей usernames и вставляет только неизвестные ID. Повторный вызов
// с тем же словарем не вставляет ничего; имя пользователя фиксируется при
// первой встрече и в дальнейшем не обновляется. Возвращает количество
// добавленных пользователей.
func (s *Store) ResolveIdentities(src Source, usernames map[int64]string) (int, error) {
	if len(usernames) == 0 {
		s.logger.Debug("Нет пользователей для обработки")
		return 0, nil
	}

	startTime := time.Now()
	s.logger.Debug("Сверка пользователей источника %s (всего: %d)", src, len(usernames))

	// Загружаем уже известные orig_id этого источника
	rows, err := s.db.Query(`SELECT orig_id FROM usernames WHERE data_src = ?`, int(src))
	if err != nil {
		return 0, fmt.Errorf("ошибка при чтении известных пользователей: %w", err)
	}
	defer rows.Close()

	knownOrigIDs := make(map[int64]struct{})
	for rows.Next() {
		var origID int64
		if err := rows.Scan(&origID); err != nil {
			return 0, fmt.Errorf("ошибка при чтении известных пользователей: %w", err)
		}
		knownOrigIDs[origID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("ошибка при чтении известных пользователей: %w", err)
	}

	// Отбираем только новые ID
	newUsers := make([]User, 0, len(usernames))
	for origID, name := range usernames {
		if _, known := knownOrigIDs[origID]; !known {
			newUsers = append(newUsers, User{Name: name, OrigID: origID, DataSrc: src})
		}
	}

	if len(newUsers) == 0 {
		s.logger.Debug("Новых пользователей нет")
		return 0, nil
	}

	stmt, err := s.db.Prepare(`INSERT INTO usernames (name, orig_id, data_src) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	txStmt := tx.Stmt(stmt)
	defer txStmt.Close()

	for _, user := range newUsers {
		if _, err := txStmt.Exec(user.Name, user.OrigID, int(user.DataSrc)); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("ошибка при вставке пользователя %d: %w", user.OrigID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	s.logger.Debug("Добавлено %d новых пользователей. Длительность: %v", len(newUsers), time.Since(startTime))
	return len(newUsers), nil
}
