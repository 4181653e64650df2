// database/errors.go
package database

import (
	"errors"
	"fmt"
)

// ErrDuplicateChat возвращается IngestChat, если чат с такой парой
// (chat_id_orig, data_src) уже есть в базе
var ErrDuplicateChat = errors.New("чат уже присутствует в базе")

// ValidationError означает, что у записи отсутствует обязательное поле.
// Ошибка касается только одной записи: уже вставленные строки не затрагиваются
type ValidationError struct {
	Entity string
	Field  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("запись %s: отсутствует обязательное поле %s", e.Entity, e.Field)
}

// validateMessage проверяет наличие обязательных полей сообщения
func validateMessage(msg *Message) error {
	if msg.MsgIDOrig == 0 {
		return &ValidationError{Entity: "message", Field: "msg_id_orig"}
	}
	if msg.ChatIDOrig == 0 {
		return &ValidationError{Entity: "message", Field: "chat_id_orig"}
	}
	if msg.Date == 0 {
		return &ValidationError{Entity: "message", Field: "date"}
	}
	return nil
}
