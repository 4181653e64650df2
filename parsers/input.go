package parsers

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// InputHandler читает файлы экспорта из каталога или ZIP-архива.
// Кодировка задается источником: cp1251 у VK, utf-8 (nil) у Telegram.
type InputHandler struct {
	inputPath string
	encoding  encoding.Encoding
	targetExt string
	dirMode   bool
	zipMode   bool
}

// NewInputHandler создает InputHandler для каталога или ZIP-файла.
// enc может быть nil, тогда содержимое читается как есть (utf-8).
func NewInputHandler(inputPath string, enc encoding.Encoding, targetExt string) (*InputHandler, error) {
	h := &InputHandler{
		inputPath: inputPath,
		encoding:  enc,
		targetExt: targetExt,
	}

	info, err := os.Stat(inputPath)
	if err == nil && info.IsDir() {
		h.dirMode = true
		return h, nil
	}

	// Проверяем, является ли файл ZIP-архивом
	if zipReader, err := zip.OpenReader(inputPath); err == nil {
		zipReader.Close()
		h.zipMode = true
		return h, nil
	}

	return nil, fmt.Errorf("входной путь %s не является каталогом или ZIP-архивом", inputPath)
}

// FileList возвращает все файлы с целевым расширением (рекурсивно)
func (h *InputHandler) FileList() ([]string, error) {
	var fileList []string

	if h.dirMode {
		err := filepath.WalkDir(h.inputPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, h.targetExt) {
				fileList = append(fileList, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("ошибка при обходе каталога %s: %w", h.inputPath, err)
		}
		return fileList, nil
	}

	zipReader, err := zip.OpenReader(h.inputPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка при открытии архива %s: %w", h.inputPath, err)
	}
	defer zipReader.Close()

	for _, f := range zipReader.File {
		if strings.HasSuffix(f.Name, h.targetExt) {
			fileList = append(fileList, f.Name)
		}
	}
	return fileList, nil
}

// ReadFile читает один файл, декодируя его из кодировки источника
func (h *InputHandler) ReadFile(filePath string) (string, error) {
	var reader io.ReadCloser
	var err error

	if h.dirMode {
		reader, err = os.Open(filePath)
		if err != nil {
			return "", fmt.Errorf("ошибка при чтении файла %s: %w", filePath, err)
		}
	} else {
		zipReader, zerr := zip.OpenReader(h.inputPath)
		if zerr != nil {
			return "", fmt.Errorf("ошибка при открытии архива %s: %w", h.inputPath, zerr)
		}
		defer zipReader.Close()

		reader, err = zipReader.Open(filePath)
		if err != nil {
			return "", fmt.Errorf("ошибка при чтении файла %s из архива: %w", filePath, err)
		}
	}
	defer reader.Close()

	var src io.Reader = reader
	if h.encoding != nil {
		src = transform.NewReader(reader, h.encoding.NewDecoder())
	}

	content, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("ошибка при чтении файла %s: %w", filePath, err)
	}
	return string(content), nil
}

// FileSize возвращает размер файла в байтах (для статистики импорта)
func (h *InputHandler) FileSize(filePath string) int64 {
	if h.dirMode {
		if info, err := os.Stat(filePath); err == nil {
			return info.Size()
		}
		return 0
	}

	zipReader, err := zip.OpenReader(h.inputPath)
	if err != nil {
		return 0
	}
	defer zipReader.Close()

	for _, f := range zipReader.File {
		if f.Name == filePath {
			return int64(f.UncompressedSize64)
		}
	}
	return 0
}
