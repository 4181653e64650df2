package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// MergeLogger представляет логгер для процесса слияния экспортов
type MergeLogger struct {
	infoLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	isVerbose   bool
	quiet       bool
}

// NewDiscardLogger возвращает логгер, который ничего не пишет (для тестов)
func NewDiscardLogger() *MergeLogger {
	discard := log.New(io.Discard, "", 0)
	return &MergeLogger{
		infoLogger:  discard,
		errorLogger: discard,
		debugLogger: discard,
		quiet:       true,
	}
}

// NewMergeLogger создает новый экземпляр логгера для процесса слияния
func NewMergeLogger(verbose bool) *MergeLogger {
	// Создаем или открываем лог-файл для записи
	currentTime := time.Now().Format("2006-01-02")
	logFileName := fmt.Sprintf("merge_log_%s.log", currentTime)

	file, err := os.OpenFile(logFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Не удалось открыть или создать файл лога: %v", err)
	}

	// Инициализируем логгеры для разных уровней
	infoLogger := log.New(file, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	errorLogger := log.New(file, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	debugLogger := log.New(file, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)

	return &MergeLogger{
		infoLogger:  infoLogger,
		errorLogger: errorLogger,
		debugLogger: debugLogger,
		isVerbose:   verbose,
	}
}

// Info логирует информационное сообщение
func (l *MergeLogger) Info(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	l.infoLogger.Println(msg)

	// Также выводим в стандартный вывод
	if !l.quiet {
		log.Println("INFO:", msg)
	}
}

// Error логирует сообщение об ошибке
func (l *MergeLogger) Error(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	l.errorLogger.Println(msg)

	// Также выводим в стандартный вывод
	if !l.quiet {
		log.Println("ERROR:", msg)
	}
}

// Debug логирует отладочное сообщение (только если включен verbose режим)
func (l *MergeLogger) Debug(format string, v ...interface{}) {
	if !l.isVerbose {
		return
	}

	msg := fmt.Sprintf(format, v...)
	l.debugLogger.Println(msg)

	// Также выводим в стандартный вывод
	if !l.quiet {
		log.Println("DEBUG:", msg)
	}
}

// LogRunStart логирует начало импорта
func (l *MergeLogger) LogRunStart(source string) {
	l.Info("Начало импорта из источника %s", source)
}

// LogIngestComplete логирует завершение фазы вставки сообщений
func (l *MergeLogger) LogIngestComplete(messages int, chats int, duration time.Duration) {
	l.Info("Вставка завершена. Вставлено %d сообщений из %d чатов. Длительность: %v", messages, chats, duration)
}

// LogRunComplete логирует завершение импорта
func (l *MergeLogger) LogRunComplete(startTime time.Time, totalMessages, totalUsers, totalChats int) {
	duration := time.Since(startTime)
	l.Info("Импорт завершён. Длительность: %v", duration)
	l.Info("Обработано: %d сообщений, %d пользователей, %d чатов", totalMessages, totalUsers, totalChats)
}

// LogUnresolved логирует количество несвязанных сообщений после привязки ID
func (l *MergeLogger) LogUnresolved(fromCount, chatCount int) {
	if fromCount == 0 && chatCount == 0 {
		l.Info("Все сообщения успешно связаны с пользователями и чатами")
		return
	}
	l.Error("Остались несвязанные сообщения: %d без пользователя, %d без чата", fromCount, chatCount)
}
