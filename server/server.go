// server/server.go
package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/mulmes2sqlite/database"
	"github.com/LilVoxy/mulmes2sqlite/utils"
)

// Server отдает объединенный архив по HTTP в режиме только для чтения.
// Параллельные чтения безопасны, пока не идет импорт.
type Server struct {
	store  *database.Store
	logger *utils.MergeLogger
	router *mux.Router
}

// ChatInfo — информация об одном чате для API
type ChatInfo struct {
	ChatID      int64  `json:"chatId"`
	ChatName    string `json:"chatName"`
	LastMsgDate int64  `json:"lastMsgDate"`
	MsgCount    int    `json:"msgCount"`
	DataSrc     string `json:"dataSrc"`
}

// MessageInfo — одно сообщение чата для API
type MessageInfo struct {
	MsgID       int64  `json:"msgId"`
	FromName    string `json:"from"`
	Date        int64  `json:"date"`
	Edited      int64  `json:"edited,omitempty"`
	Text        string `json:"text"`
	Attachments string `json:"attachments,omitempty"`
	FwdMessages string `json:"fwdMessages,omitempty"`
	IsService   bool   `json:"isService,omitempty"`
}

// StatusInfo — сводка по содержимому архива
type StatusInfo struct {
	Chats      int                       `json:"chats"`
	Messages   int                       `json:"messages"`
	Users      int                       `json:"users"`
	Unresolved database.UnresolvedCounts `json:"unresolved"`
}

// NewServer создает HTTP-сервер над объединенным архивом
func NewServer(store *database.Store, logger *utils.MergeLogger) *Server {
	s := &Server{
		store:  store,
		logger: logger,
	}

	router := mux.NewRouter()

	// Настраиваем CORS
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/api/chats", s.handleChats).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/messages", s.handleMessages).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/runs", s.handleRuns).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/status", s.handleStatus).Methods("GET", "OPTIONS")

	s.router = router
	return s
}

// Router возвращает настроенный маршрутизатор
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe запускает HTTP-сервер на указанном адресе
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("HTTP-сервер архива запущен на %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Ошибка при отправке ответа: %v", err)
	}
}

// handleChats возвращает список всех чатов архива
func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.DB().Query(`
		SELECT chat_id, chat_name, last_msg_date, msg_count, data_src
		FROM chats
		ORDER BY last_msg_date DESC
	`)
	if err != nil {
		s.logger.Error("Ошибка при чтении списка чатов: %v", err)
		http.Error(w, "Ошибка при чтении списка чатов", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	chats := []ChatInfo{}
	for rows.Next() {
		var chat ChatInfo
		var chatName sql.NullString
		var dataSrc int
		if err := rows.Scan(&chat.ChatID, &chatName, &chat.LastMsgDate, &chat.MsgCount, &dataSrc); err != nil {
			s.logger.Error("Ошибка при чтении списка чатов: %v", err)
			http.Error(w, "Ошибка при чтении списка чатов", http.StatusInternalServerError)
			return
		}
		chat.ChatName = chatName.String
		chat.DataSrc = database.Source(dataSrc).String()
		chats = append(chats, chat)
	}

	s.writeJSON(w, map[string][]ChatInfo{"chats": chats})
}

// handleMessages возвращает сообщения одного чата по глобальному chat_id
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	chatIDStr := query.Get("chat_id")
	if chatIDStr == "" {
		http.Error(w, "Отсутствует обязательный параметр chat_id", http.StatusBadRequest)
		return
	}
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		http.Error(w, "Неверный формат chat_id", http.StatusBadRequest)
		return
	}

	limit := 100
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	rows, err := s.store.DB().Query(`
		SELECT messages.msg_id, usernames.name, messages.date, messages.edited,
			messages.text, messages.attachments, messages.fwd_messages, messages.is_service_msg
		FROM messages
		LEFT JOIN usernames ON messages.from_id = usernames.user_id
		WHERE messages.chat_id = ?
		ORDER BY messages.date
		LIMIT ? OFFSET ?
	`, chatID, limit, offset)
	if err != nil {
		s.logger.Error("Ошибка при чтении сообщений чата %d: %v", chatID, err)
		http.Error(w, "Ошибка при чтении сообщений", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	messages := []MessageInfo{}
	for rows.Next() {
		var msg MessageInfo
		var fromName, text, attachments, fwdMessages sql.NullString
		if err := rows.Scan(&msg.MsgID, &fromName, &msg.Date, &msg.Edited,
			&text, &attachments, &fwdMessages, &msg.IsService); err != nil {
			s.logger.Error("Ошибка при чтении сообщений чата %d: %v", chatID, err)
			http.Error(w, "Ошибка при чтении сообщений", http.StatusInternalServerError)
			return
		}
		msg.FromName = fromName.String
		msg.Text = text.String
		msg.Attachments = attachments.String
		msg.FwdMessages = fwdMessages.String
		messages = append(messages, msg)
	}

	s.writeJSON(w, map[string][]MessageInfo{"messages": messages})
}

// handleRuns возвращает журнал запусков импорта
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := s.store.LastRuns(limit)
	if err != nil {
		s.logger.Error("Ошибка при чтении журнала запусков: %v", err)
		http.Error(w, "Ошибка при чтении журнала запусков", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []database.RunLog{}
	}

	s.writeJSON(w, map[string][]database.RunLog{"runs": runs})
}

// handleStatus возвращает сводку по архиву, включая количество
// непривязанных сообщений
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status StatusInfo

	counts := map[string]*int{
		"chats":     &status.Chats,
		"messages":  &status.Messages,
		"usernames": &status.Users,
	}
	for table, dst := range counts {
		if err := s.store.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(dst); err != nil {
			s.logger.Error("Ошибка при подсчете строк таблицы %s: %v", table, err)
			http.Error(w, "Ошибка при чтении статистики", http.StatusInternalServerError)
			return
		}
	}

	unresolved, err := s.store.CountUnresolved()
	if err != nil {
		s.logger.Error("Ошибка при подсчете непривязанных сообщений: %v", err)
		http.Error(w, "Ошибка при чтении статистики", http.StatusInternalServerError)
		return
	}
	status.Unresolved = unresolved

	s.writeJSON(w, status)
}
