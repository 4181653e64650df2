// database/view.go
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// UnifiedRow — одна строка представления messages_view.
// ChatName и FromName пустые у сообщений, которые еще не привязаны.
type UnifiedRow struct {
	ChatName    string `json:"chat_name"`
	Date        string `json:"date"`
	FromName    string `json:"from"`
	Text        string `json:"text"`
	Attachments string `json:"attachments,omitempty"`
	FwdMessages string `json:"fwd_messages,omitempty"`
	DataSrc     Source `json:"data_src"`
}

// ExportUnifiedView читает представление messages_view целиком.
// Представление вычисляется при каждом чтении и всегда отражает
// актуальное состояние привязки.
func (s *Store) ExportUnifiedView() ([]UnifiedRow, error) {
	rows, err := s.db.Query(`
		SELECT chat_name, date, from_name, text, attachments, fwd_messages, data_src
		FROM messages_view
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении messages_view: %w", err)
	}
	defer rows.Close()

	var result []UnifiedRow
	for rows.Next() {
		var row UnifiedRow
		var chatName, date, fromName, text, attachments, fwdMessages sql.NullString
		var dataSrc int
		if err := rows.Scan(&chatName, &date, &fromName, &text, &attachments, &fwdMessages, &dataSrc); err != nil {
			return nil, fmt.Errorf("ошибка при чтении строки messages_view: %w", err)
		}
		row.ChatName = chatName.String
		row.Date = date.String
		row.FromName = fromName.String
		row.Text = text.String
		row.Attachments = attachments.String
		row.FwdMessages = fwdMessages.String
		row.DataSrc = Source(dataSrc)
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при чтении messages_view: %w", err)
	}

	return result, nil
}

// DumpUnifiedView выгружает messages_view в формате JSON Lines.
// При compress = true поток сжимается snappy (формат snappy framing,
// распаковывается snappy.NewReader). Возвращает количество выгруженных строк.
func (s *Store) DumpUnifiedView(w io.Writer, compress bool) (int, error) {
	viewRows, err := s.ExportUnifiedView()
	if err != nil {
		return 0, err
	}

	out := w
	var snappyWriter *snappy.Writer
	if compress {
		snappyWriter = snappy.NewBufferedWriter(w)
		out = snappyWriter
	}

	encoder := json.NewEncoder(out)
	written := 0
	for i := range viewRows {
		if err := encoder.Encode(&viewRows[i]); err != nil {
			return written, fmt.Errorf("ошибка при записи выгрузки: %w", err)
		}
		written++
	}

	if snappyWriter != nil {
		if err := snappyWriter.Close(); err != nil {
			return written, fmt.Errorf("ошибка при завершении сжатия выгрузки: %w", err)
		}
	}

	return written, nil
}
