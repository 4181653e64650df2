package parsers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	"github.com/LilVoxy/mulmes2sqlite/database"
	"github.com/LilVoxy/mulmes2sqlite/utils"
)

// Сокращенные русские названия месяцев в датах VK-экспорта
var vkMonths = map[string]string{
	"янв": "01", "фев": "02", "мар": "03", "апр": "04",
	"мая": "05", "июн": "06", "июл": "07", "авг": "08",
	"сен": "09", "окт": "10", "ноя": "11", "дек": "12",
}

// Русские описания вложений в HTML-экспорте VK -> канонические типы
var vkAttachmentTypes = map[string]database.AttachmentType{
	"Фотография":                  database.AttachmentPhoto,
	"Видеозапись":                 database.AttachmentVideo,
	"Аудиозапись":                 database.AttachmentAudio,
	"Стикер":                      database.AttachmentSticker,
	"Файл":                        database.AttachmentFile,
	"Запись на стене":             database.AttachmentWallPost,
	"Комментарий на стене":        database.AttachmentWallComment,
	"Ссылка":                      database.AttachmentLink,
	"Статья":                      database.AttachmentArticle,
	"Карта":                       database.AttachmentMap,
	"Опрос":                       database.AttachmentPoll,
	"Подарок":                     database.AttachmentGift,
	"История":                     database.AttachmentStory,
	"Плейлист":                    database.AttachmentPlaylist,
	"Альбом фотографий":           database.AttachmentPhotoAlbum,
	"Звонок":                      database.AttachmentPhoneCall,
	"Товар":                       database.AttachmentMarketItem,
	"Денежный перевод":            database.AttachmentMoneyTransfer,
	"Запрос на денежный перевод":  database.AttachmentMoneyRequest,
	"Сообщение удалено":           database.AttachmentDeletedMsg,
}

// VKhtmlParser разбирает HTML-экспорт VK: каталог на чат,
// внутри — страницы messagesN.html в кодировке cp1251
type VKhtmlParser struct {
	inp         *InputHandler
	logger      *utils.MergeLogger
	procCount   int
	ownUserID   int64
	ownUsername string
	usernames   map[int64]string

	// Суммарный размер прочитанных HTML-файлов (для статистики)
	readBytesCount int64
}

// NewVKhtmlParser создает парсер VK-экспорта.
// procCount задает количество воркеров для разбора HTML-файлов.
func NewVKhtmlParser(inputPath string, procCount int, logger *utils.MergeLogger) (*VKhtmlParser, error) {
	inp, err := NewInputHandler(inputPath, charmap.Windows1251, ".html")
	if err != nil {
		return nil, err
	}
	if procCount < 1 {
		procCount = 1
	}
	logger.Info("VKhtmlParser: количество воркеров %d", procCount)
	return &VKhtmlParser{
		inp:       inp,
		logger:    logger,
		procCount: procCount,
		usernames: make(map[int64]string),
	}, nil
}

// Source возвращает тег источника
func (p *VKhtmlParser) Source() database.Source {
	return database.SourceVK
}

// Usernames возвращает накопленный словарь пользователей
func (p *VKhtmlParser) Usernames() map[int64]string {
	return p.usernames
}

// ReadBytes возвращает суммарный размер обработанных HTML-файлов
func (p *VKhtmlParser) ReadBytes() int64 {
	return p.readBytesCount
}

// CreateDataEntries ищет каталоги чатов по файлам messages0.html.
// Попутно определяет ID и имя владельца экспорта: его сообщения
// в HTML не имеют ссылки на профиль.
func (p *VKhtmlParser) CreateDataEntries() ([]DataEntry, error) {
	var entries []DataEntry

	fullFileList, err := p.inp.FileList()
	if err != nil {
		return nil, err
	}

	for _, filename := range fullFileList {
		if path.Base(filepath.ToSlash(filename)) != "messages0.html" {
			continue
		}

		content, err := p.inp.ReadFile(filename)
		if err != nil {
			p.logger.Error("Пропуск файла %s: %v", filename, err)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			p.logger.Error("Пропуск файла %s: %v", filename, err)
			continue
		}

		chatName := doc.Find("div.ui_crumb").First().Text()

		if p.ownUserID == 0 {
			p.ownUserID = p.parseOwnID(doc)
			p.ownUsername = p.parseOwnUsername()
			p.logger.Info("ID и имя владельца экспорта: %d, %s", p.ownUserID, p.ownUsername)
		}

		entries = append(entries, DataEntry{
			ChatCount: 1,
			Name:      chatName,
			Path:      path.Dir(filepath.ToSlash(filename)),
		})
	}

	return entries, nil
}

// vkFileResult — результат разбора одного HTML-файла
type vkFileResult struct {
	messages  []database.Message
	users     map[int64]string
	readBytes int64
}

// ProcessDataEntry разбирает каталог одного чата. HTML-страницы
// обрабатываются параллельно пулом воркеров; результаты сливаются
// в один список после завершения всех.
func (p *VKhtmlParser) ProcessDataEntry(entry DataEntry) ([]*database.ChatObject, error) {
	fullFileList, err := p.inp.FileList()
	if err != nil {
		return nil, err
	}

	var htmlFiles []string
	for _, f := range fullFileList {
		if path.Dir(filepath.ToSlash(f)) == entry.Path {
			htmlFiles = append(htmlFiles, f)
		}
	}

	results := make([]vkFileResult, len(htmlFiles))

	g := new(errgroup.Group)
	g.SetLimit(p.procCount)
	for i, file := range htmlFiles {
		i, file := i, file
		g.Go(func() error {
			res, err := p.processSingleHTML(file)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Слияние результатов выполняется одним потоком
	var msgList []database.Message
	for i := range results {
		msgList = append(msgList, results[i].messages...)
		for id, name := range results[i].users {
			p.usernames[id] = name
		}
		p.readBytesCount += results[i].readBytes
	}

	chatID := parseVKChatID(entry.Path)

	return []*database.ChatObject{{
		IDOrig:   chatID,
		Name:     entry.Name,
		Messages: msgList,
	}}, nil
}

// parseVKChatID извлекает исходный ID чата из имени каталога
func parseVKChatID(dirPath string) int64 {
	base := path.Base(filepath.ToSlash(dirPath))
	id, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// processSingleHTML разбирает одну HTML-страницу чата
func (p *VKhtmlParser) processSingleHTML(htmlPath string) (vkFileResult, error) {
	res := vkFileResult{users: make(map[int64]string)}
	chatID := parseVKChatID(path.Dir(filepath.ToSlash(htmlPath)))

	content, err := p.inp.ReadFile(htmlPath)
	if err != nil {
		return res, err
	}
	res.readBytes = p.inp.FileSize(htmlPath)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return res, fmt.Errorf("ошибка при разборе файла %s: %w", htmlPath, err)
	}

	// Автор и дата сохраняются между итерациями: сообщение без заголовка
	// продолжает серию сообщений предыдущего автора
	var userID int64
	var date, edited int64

	doc.Find("div.message").Each(func(_ int, msgDiv *goquery.Selection) {
		isServiceMsg := false
		var msgText string

		msgIDStr := msgDiv.AttrOr("data-id", "")
		msgID, _ := strconv.ParseInt(msgIDStr, 10, 64)

		header := msgDiv.Find("div.message__header").First()
		if header.Length() > 0 {
			edited = 0
			var username string
			userID, username = p.parseUser(header)
			res.users[userID] = username

			headerParts := strings.SplitN(header.Text(), ", ", 2)
			if len(headerParts) == 2 {
				var wasEdited bool
				date, wasEdited = p.parseDate(headerParts[1])
				if wasEdited {
					editedTitle := header.Find("span.message-edited").AttrOr("title", "")
					edited, _ = p.parseDate(editedTitle)
				}
			}
		}

		var attachments []database.Attachment
		var fwdMessages []database.FwdMessage
		kludges := msgDiv.Find("div.kludges").First()
		if kludges.Length() > 0 {
			attachments, fwdMessages = p.parseAttachments(kludges.Find("div.attachment"))
			if kludges.Find("a.im_srv_lnk").Length() > 0 {
				isServiceMsg = true
				msgText = strings.TrimSpace(kludges.Text())
			}
			kludges.Remove()
		}

		if !isServiceMsg {
			bodyDivs := msgDiv.ChildrenFiltered("div")
			if bodyDivs.Length() > 1 {
				msgText = textWithNewlines(bodyDivs.Eq(bodyDivs.Length() - 1))
			}
		}

		res.messages = append(res.messages, database.Message{
			MsgIDOrig:    msgID,
			ChatIDOrig:   chatID,
			FromIDOrig:   userID,
			Date:         date,
			Text:         msgText,
			Attachments:  attachments,
			FwdMessages:  fwdMessages,
			IsServiceMsg: isServiceMsg,
			Edited:       edited,
			DataSrc:      database.SourceVK,
		})
	})

	return res, nil
}

// parseUser извлекает автора сообщения из заголовка. Заголовок без ссылки
// на профиль означает сообщение владельца экспорта.
func (p *VKhtmlParser) parseUser(header *goquery.Selection) (int64, string) {
	userLink := header.Find("a").First()
	if userLink.Length() == 0 {
		return p.ownUserID, p.ownUsername
	}

	username := userLink.Text()
	href := userLink.AttrOr("href", "")
	segments := strings.Split(href, "/")
	userIDStr := segments[len(segments)-1]

	var digits strings.Builder
	for _, r := range userIDStr {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	id, _ := strconv.ParseInt(digits.String(), 10, 64)

	// Префикс id — личная страница; club и public кодируются
	// отрицательным значением
	if !strings.HasPrefix(userIDStr, "id") {
		id = -id
	}

	return id, username
}

// parseDate разбирает дату формата "12 янв 2021 в 15:04:05".
// Второе возвращаемое значение показывает наличие пометки "ред.".
func (p *VKhtmlParser) parseDate(dateStr string) (int64, bool) {
	edited := false

	parts := strings.Split(strings.TrimSpace(dateStr), " в ")
	if len(parts) != 2 {
		return 0, false
	}
	datePart, timePart := parts[0], parts[1]

	dateFields := strings.Fields(datePart)
	if len(dateFields) != 3 {
		return 0, false
	}
	day, monthName, year := dateFields[0], dateFields[1], dateFields[2]

	month, ok := vkMonths[strings.ToLower(monthName)]
	if !ok {
		return 0, false
	}

	if strings.Contains(timePart, "ред.") {
		edited = true
		timePart = strings.Fields(timePart)[0]
	}

	timeFields := strings.Split(timePart, ":")
	if len(timeFields) != 3 {
		return 0, false
	}

	var nums [6]int
	for i, s := range []string{year, month, day, timeFields[0], timeFields[1], timeFields[2]} {
		n, err := strconv.Atoi(s)
		if err != nil {
			p.logger.Error("Ошибка при разборе даты %q: %v", dateStr, err)
			return 0, false
		}
		nums[i] = n
	}

	ts := time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.Local)
	return ts.Unix(), edited
}

// parseAttachments разбирает блоки вложений. Пересланные сообщения
// в HTML-экспорте не раскрываются: доступно только их количество.
func (p *VKhtmlParser) parseAttachments(attDivs *goquery.Selection) ([]database.Attachment, []database.FwdMessage) {
	var attachments []database.Attachment
	var fwdMessages []database.FwdMessage

	attDivs.Each(func(_ int, a *goquery.Selection) {
		desc := strings.TrimSpace(a.Find("div.attachment__description").First().Text())

		if strings.Contains(desc, "прикреп") {
			fields := strings.Fields(desc)
			count, _ := strconv.Atoi(fields[0])
			fwdMessages = []database.FwdMessage{{Count: count}}
			return
		}

		var att database.Attachment
		att.Type = vkAttachmentTypes[desc]
		if link := a.Find("a.attachment__link").First(); link.Length() > 0 {
			att.URL = link.AttrOr("href", "")
		}

		if att.Type == database.AttachmentFile {
			// Голосовые сообщения в экспорте выглядят как файлы .ogg
			if strings.Contains(att.URL, ".ogg") {
				att.Type = database.AttachmentVoiceMessage
			}
		} else if att.Type == "" {
			att.Type = database.AttachmentUnknown
			att.Misc = desc
		}

		attachments = append(attachments, att)
	})

	return attachments, fwdMessages
}

// parseOwnID извлекает ID владельца экспорта из meta-тега jd
// (base64-закодированный JSON)
func (p *VKhtmlParser) parseOwnID(doc *goquery.Document) int64 {
	base64JSON := doc.Find(`meta[name="jd"]`).AttrOr("content", "")
	if base64JSON == "" {
		return 1
	}
	for len(base64JSON)%4 != 0 {
		base64JSON += "=" // выравнивание для base64
	}

	decoded, err := base64.StdEncoding.DecodeString(base64JSON)
	if err != nil {
		return 1
	}

	var meta struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.Unmarshal(decoded, &meta); err != nil || meta.UserID == 0 {
		return 1
	}
	return meta.UserID
}

// parseOwnUsername ищет полное имя владельца экспорта в page-info.html
func (p *VKhtmlParser) parseOwnUsername() string {
	const ownNamePlaceholder = "Вы"

	fullFileList, err := p.inp.FileList()
	if err != nil {
		return ownNamePlaceholder
	}

	for _, f := range fullFileList {
		if path.Base(filepath.ToSlash(f)) != "page-info.html" {
			continue
		}

		content, err := p.inp.ReadFile(f)
		if err != nil {
			return ownNamePlaceholder
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			return ownNamePlaceholder
		}

		fullNameDiv := doc.Find("div.item__tertiary").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.TrimSpace(s.Text()) == "Полное имя"
		})
		if fullNameDiv.Length() == 0 {
			return ownNamePlaceholder
		}

		valueDivs := fullNameDiv.First().Parent().ChildrenFiltered("div")
		if valueDivs.Length() < 2 {
			return ownNamePlaceholder
		}

		// Схлопываем двойные пробелы в имени
		return strings.Join(strings.Fields(valueDivs.Eq(1).Text()), " ")
	}

	return ownNamePlaceholder
}

// textWithNewlines собирает текст выделения, заменяя <br> на перевод строки
func textWithNewlines(sel *goquery.Selection) string {
	var b strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			b.WriteString("\n")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}

	return strings.TrimSpace(b.String())
}
