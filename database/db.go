// database/db.go
package database

import (
	"database/sql"
	"fmt"

	"github.com/LilVoxy/mulmes2sqlite/utils"
	_ "github.com/mattn/go-sqlite3"
)

// Connect открывает (или создает) файл базы данных SQLite.
// Вся база лежит в одном файле: он создается при первом запуске
// и дополняется при последующих импортах.
func Connect(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных %s: %w", dbPath, err)
	}

	// Импорт выполняется строго одним писателем, поэтому одного
	// соединения достаточно; это же исключает ошибки SQLITE_BUSY
	// между соединениями внутри процесса
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось установить соединение с базой данных %s: %w", dbPath, err)
	}

	return db, nil
}

// Store инкапсулирует доступ к таблицам chats, messages и usernames
type Store struct {
	db        *sql.DB
	logger    *utils.MergeLogger
	batchSize int

	// Счетчик вставленных сообщений за время жизни Store (один запуск импорта)
	msgCounter int
}

// NewStore создает новый экземпляр Store
func NewStore(db *sql.DB, logger *utils.MergeLogger, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Store{
		db:        db,
		logger:    logger,
		batchSize: batchSize,
	}
}

// MessagesInserted возвращает количество сообщений, вставленных этим Store
func (s *Store) MessagesInserted() int {
	return s.msgCounter
}

// DB возвращает соединение для read-only потребителей (HTTP-сервер)
func (s *Store) DB() *sql.DB {
	return s.db
}
