package parsers

import (
	"github.com/LilVoxy/mulmes2sqlite/database"
)

// DataEntry описывает одну найденную единицу импорта: у tgjson это файл
// result.json (один чат или полный экспорт), у vkhtml — каталог одного чата
type DataEntry struct {
	ChatCount int
	Name      string
	Path      string
}

// Parser — общий контракт парсеров экспортов.
// Parser накапливает словарь пользователей по мере обработки чатов;
// Usernames нужно запрашивать после обработки всех выбранных записей.
type Parser interface {
	// CreateDataEntries сканирует входной путь и возвращает найденные записи
	CreateDataEntries() ([]DataEntry, error)

	// ProcessDataEntry разбирает одну запись в список дескрипторов чатов
	ProcessDataEntry(entry DataEntry) ([]*database.ChatObject, error)

	// Usernames возвращает накопленный словарь (orig_id -> имя),
	// включая авторов пересланных сообщений
	Usernames() map[int64]string

	// Source возвращает тег источника данных
	Source() database.Source
}
