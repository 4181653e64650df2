// main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/LilVoxy/mulmes2sqlite/config"
	"github.com/LilVoxy/mulmes2sqlite/database"
	"github.com/LilVoxy/mulmes2sqlite/ingest"
	"github.com/LilVoxy/mulmes2sqlite/parsers"
	"github.com/LilVoxy/mulmes2sqlite/server"
	"github.com/LilVoxy/mulmes2sqlite/utils"
)

func main() {
	// Параметры командной строки
	parserPtr := flag.String("p", "", "Парсер данных: vkhtml или tgjson")
	inputPtr := flag.String("i", "", "Входной каталог или ZIP-архив")
	procPtr := flag.Int("j", 0, "Количество воркеров для разбора HTML (по умолчанию половина CPU)")
	modePtr := flag.String("mode", "once", "Режим работы: once, watch, serve или dump")
	intervalPtr := flag.Duration("interval", 0, "Интервал повторного импорта (только для режима watch)")
	listenPtr := flag.String("listen", "", "Адрес HTTP-сервера (только для режима serve)")
	dumpPtr := flag.String("dump", "merged_chats.jsonl", "Файл выгрузки (только для режима dump)")
	snappyPtr := flag.Bool("snappy", false, "Сжимать выгрузку snappy (только для режима dump)")
	verbosePtr := flag.Bool("v", false, "Подробное логирование")

	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Использование: mulmes2sqlite [флаги] <файл базы данных>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.GetConfig()
	cfg.DBPath = flag.Arg(0)
	cfg.EnableDetailedLogging = *verbosePtr
	if *procPtr > 0 {
		cfg.ProcCount = *procPtr
	}
	if *intervalPtr > 0 {
		cfg.RunInterval = *intervalPtr
	}
	if *listenPtr != "" {
		cfg.ListenAddr = *listenPtr
	}

	logger := utils.NewMergeLogger(cfg.EnableDetailedLogging)

	db, err := database.Connect(cfg.DBPath)
	if err != nil {
		log.Fatalf("Не удалось открыть базу данных: %v", err)
	}
	defer db.Close()

	store := database.NewStore(db, logger, cfg.BatchSize)
	if err := store.CreateSchema(); err != nil {
		log.Fatalf("Не удалось создать схему базы данных: %v", err)
	}
	if err := store.CreateRunLogTable(); err != nil {
		log.Fatalf("Не удалось создать журнал запусков: %v", err)
	}

	switch *modePtr {
	case "once":
		runOnce(cfg, store, logger, *parserPtr, *inputPtr)
	case "watch":
		runWatch(cfg, store, logger, *parserPtr, *inputPtr)
	case "serve":
		runServe(cfg, store, logger)
	case "dump":
		runDump(store, *dumpPtr, *snappyPtr)
	default:
		log.Println("Неизвестный режим работы:", *modePtr)
		log.Println("Доступные режимы: once, watch, serve, dump")
		os.Exit(1)
	}
}

// buildParser создает парсер по тегу из командной строки
func buildParser(cfg config.MergeConfig, logger *utils.MergeLogger, parserTag, inputPath string) (parsers.Parser, error) {
	if parserTag == "" {
		return nil, fmt.Errorf("парсер не выбран (флаг -p)")
	}
	if inputPath == "" {
		return nil, fmt.Errorf("входной путь не задан (флаг -i)")
	}

	switch parserTag {
	case "vkhtml":
		return parsers.NewVKhtmlParser(inputPath, cfg.ProcCount, logger)
	case "tgjson":
		return parsers.NewTGjsonParser(inputPath, logger)
	}
	return nil, fmt.Errorf("неизвестный парсер %q", parserTag)
}

// runOnce выполняет один импорт с интерактивным выбором чатов
func runOnce(cfg config.MergeConfig, store *database.Store, logger *utils.MergeLogger, parserTag, inputPath string) {
	parser, err := buildParser(cfg, logger, parserTag, inputPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	entries, err := parser.CreateDataEntries()
	if err != nil {
		log.Fatalf("❌ Ошибка при сканировании входного пути: %v", err)
	}
	if len(entries) == 0 {
		log.Fatalf("❌ Во входном пути не найдено данных для импорта")
	}

	selected, quit := askUserBeforeParsing(entries)
	if quit {
		return
	}

	runner := ingest.NewRunner(cfg, store, parser, logger)
	if err := runner.Run(selected); err != nil {
		log.Fatalf("❌ Ошибка при выполнении импорта: %v", err)
	}
}

// runWatch периодически повторяет импорт всех найденных чатов
func runWatch(cfg config.MergeConfig, store *database.Store, logger *utils.MergeLogger, parserTag, inputPath string) {
	parser, err := buildParser(cfg, logger, parserTag, inputPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	// Создаем контекст, который будет отменен при получении сигнала завершения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		log.Println("Получен сигнал завершения. Останавливаем импорт...")
		cancel()
	}()

	runner := ingest.NewRunner(cfg, store, parser, logger)
	runner.StartScheduler(ctx)
}

// runServe запускает HTTP-сервер архива
func runServe(cfg config.MergeConfig, store *database.Store, logger *utils.MergeLogger) {
	srv := server.NewServer(store, logger)
	if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
		log.Fatalf("❌ Ошибка HTTP-сервера: %v", err)
	}
}

// runDump выгружает объединенное представление в файл JSON Lines
func runDump(store *database.Store, dumpPath string, compress bool) {
	if compress && !strings.HasSuffix(dumpPath, ".snappy") {
		dumpPath += ".snappy"
	}

	file, err := os.Create(dumpPath)
	if err != nil {
		log.Fatalf("❌ Не удалось создать файл выгрузки: %v", err)
	}
	defer file.Close()

	written, err := store.DumpUnifiedView(file, compress)
	if err != nil {
		log.Fatalf("❌ Ошибка при выгрузке: %v", err)
	}
	log.Printf("✅ Выгружено %d строк в %s", written, dumpPath)
}

// askUserBeforeParsing показывает найденные чаты и спрашивает, что импортировать.
// Второе возвращаемое значение true означает выход без импорта.
func askUserBeforeParsing(entries []parsers.DataEntry) ([]parsers.DataEntry, bool) {
	chatsTotal := 0
	for _, entry := range entries {
		chatsTotal += entry.ChatCount
	}

	fmt.Printf("Найдено чатов: %d\n", chatsTotal)
	for i, entry := range entries {
		fmt.Printf("[%d] %s\n", i+1, entry.Name)
	}
	fmt.Println("Введите 'a' чтобы импортировать все чаты (по умолчанию),\n's' чтобы выбрать нужные, 'q' для выхода")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return nil, true
		}
		answer := strings.TrimSpace(scanner.Text())

		switch answer {
		case "", "a":
			return entries, false
		case "s":
			return selectChats(entries, scanner)
		case "q":
			return nil, true
		default:
			fmt.Printf("Неизвестная команда: %s\n", answer)
		}
	}
}

// selectChats разбирает ввод вида "1,3,5" и возвращает выбранные записи
func selectChats(entries []parsers.DataEntry, scanner *bufio.Scanner) ([]parsers.DataEntry, bool) {
	fmt.Println("Введите номера чатов для импорта (пример: 1,3,5)")
	fmt.Print("> ")
	if !scanner.Scan() {
		return nil, true
	}
	userInput := strings.TrimSpace(scanner.Text())

	var selected []parsers.DataEntry
	for _, part := range strings.Split(userInput, ",") {
		index, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || index < 1 || index > len(entries) {
			fmt.Printf("Ошибка разбора ввода: %q\n", part)
			return nil, true
		}
		selected = append(selected, entries[index-1])
	}

	if len(selected) == 0 {
		return nil, true
	}
	return selected, false
}
