package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/LilVoxy/mulmes2sqlite/config"
	"github.com/LilVoxy/mulmes2sqlite/database"
	"github.com/LilVoxy/mulmes2sqlite/parsers"
	"github.com/LilVoxy/mulmes2sqlite/utils"
)

// Runner выполняет один запуск импорта: вставка чатов и сообщений,
// сверка пользователей, привязка глобальных ID, отчет. Все счетчики
// живут в экземпляре Runner, глобального состояния нет.
type Runner struct {
	cfg    config.MergeConfig
	store  *database.Store
	parser parsers.Parser
	logger *utils.MergeLogger
}

// NewRunner создает новый экземпляр Runner
func NewRunner(cfg config.MergeConfig, store *database.Store, parser parsers.Parser, logger *utils.MergeLogger) *Runner {
	return &Runner{
		cfg:    cfg,
		store:  store,
		parser: parser,
		logger: logger,
	}
}

// Run обрабатывает выбранные записи импорта от начала до конца.
// Запись о запуске сохраняется в журнале merge_run_log.
func (r *Runner) Run(entries []parsers.DataEntry) error {
	src := r.parser.Source()
	r.logger.LogRunStart(src.String())
	startTime := time.Now()

	runID, err := r.store.StartRun(src)
	if err != nil {
		return err
	}

	stats, err := r.run(entries, startTime)
	if err != nil {
		if logErr := r.store.FinishRunFailure(runID, err.Error()); logErr != nil {
			r.logger.Error("Не удалось обновить журнал запусков: %v", logErr)
		}
		return err
	}

	if err := r.store.FinishRunSuccess(runID, stats); err != nil {
		r.logger.Error("Не удалось обновить журнал запусков: %v", err)
	}
	return nil
}

func (r *Runner) run(entries []parsers.DataEntry, startTime time.Time) (database.RunStats, error) {
	var stats database.RunStats
	src := r.parser.Source()

	for i, entry := range entries {
		r.logger.Info("[%d/%d] Обработка %s", i+1, len(entries), entry.Name)

		chats, err := r.parser.ProcessDataEntry(entry)
		if err != nil {
			return stats, fmt.Errorf("ошибка при обработке %s: %w", entry.Name, err)
		}

		for _, chat := range chats {
			inserted, err := r.store.IngestChat(chat, src)
			stats.MessagesInserted += inserted
			if err != nil {
				if errors.Is(err, database.ErrDuplicateChat) {
					r.logger.Info("Чат %q уже импортирован, пропускаем", chat.Name)
					stats.ChatsSkipped++
					continue
				}
				var valErr *database.ValidationError
				if errors.As(err, &valErr) {
					// Невалидные сообщения уже пропущены внутри пакета,
					// остальная часть чата вставлена
					r.logger.Error("Часть сообщений чата %q отброшена: %v", chat.Name, err)
					stats.ChatsProcessed++
					continue
				}
				return stats, err
			}
			stats.ChatsProcessed++
		}
	}

	r.logger.LogIngestComplete(stats.MessagesInserted, stats.ChatsProcessed, time.Since(startTime))

	r.logger.Info("Обработка ID пользователей и чатов...")
	usersInserted, err := r.store.ResolveIdentities(src, r.parser.Usernames())
	if err != nil {
		return stats, err
	}
	stats.UsersInserted = usersInserted

	if err := r.store.BindForeignKeys(); err != nil {
		return stats, err
	}

	unresolved, err := r.store.CountUnresolved()
	if err != nil {
		return stats, err
	}
	stats.UnresolvedFromID = unresolved.FromID
	stats.UnresolvedChatID = unresolved.ChatID
	r.logger.LogUnresolved(unresolved.FromID, unresolved.ChatID)

	r.logger.LogRunComplete(startTime, stats.MessagesInserted, stats.UsersInserted, stats.ChatsProcessed)
	return stats, nil
}

// RunAll сканирует входной путь и импортирует все найденные записи
func (r *Runner) RunAll() error {
	entries, err := r.parser.CreateDataEntries()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("во входном пути не найдено данных для импорта")
	}
	return r.Run(entries)
}

// StartScheduler периодически повторяет полный импорт. Повторный запуск
// безопасен: известные чаты пропускаются, сверка пользователей и привязка
// ID идемпотентны.
func (r *Runner) StartScheduler(ctx context.Context) {
	scheduler := gocron.NewScheduler(time.UTC)

	r.logger.Info("Запуск планировщика импорта с интервалом %v", r.cfg.RunInterval)

	_, err := scheduler.Every(r.cfg.RunInterval).Do(func() {
		r.logger.Info("Запланированный запуск импорта")
		if err := r.RunAll(); err != nil {
			r.logger.Error("Ошибка при выполнении запланированного импорта: %v", err)
		}
	})
	if err != nil {
		r.logger.Error("Ошибка при настройке планировщика: %v", err)
		return
	}

	scheduler.StartAsync()

	// Ожидаем сигнал остановки из контекста
	<-ctx.Done()

	scheduler.Stop()
	r.logger.Info("Планировщик импорта остановлен")
}
