package config

import (
	"os"
	"runtime"
	"time"
)

// MergeConfig содержит конфигурацию процесса слияния экспортов
type MergeConfig struct {
	// Путь к файлу базы данных SQLite
	DBPath string `json:"db_path"`

	// Максимальное количество сообщений, вставляемых в одной транзакции
	BatchSize int `json:"batch_size"`

	// Количество воркеров для разбора HTML-файлов
	ProcCount int `json:"proc_count"`

	// Интервал повторного импорта в режиме watch
	RunInterval time.Duration `json:"run_interval"`

	// Адрес HTTP-сервера для режима serve
	ListenAddr string `json:"listen_addr"`

	// Включение/отключение подробного логирования
	EnableDetailedLogging bool `json:"enable_detailed_logging"`
}

// GetConfig возвращает конфигурацию со значениями по умолчанию
func GetConfig() MergeConfig {
	procCount := runtime.NumCPU() / 2
	if procCount < 1 {
		procCount = 1
	}

	cfg := MergeConfig{
		DBPath:                "merged_chats.db",
		BatchSize:             500,
		ProcCount:             procCount,
		RunInterval:           time.Hour,
		ListenAddr:            ":8080",
		EnableDetailedLogging: false,
	}

	// Переопределение пути к БД через переменную окружения
	if envPath := os.Getenv("MULMES_DB_PATH"); envPath != "" {
		cfg.DBPath = envPath
	}

	return cfg
}
