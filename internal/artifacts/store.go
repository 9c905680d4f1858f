// internal/artifacts/store.go
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Gammanik/buildsync/internal/catalog"
)

const (
	// FilePrefix префикс имени файла сборки
	FilePrefix = "build"
	// DefaultExt расширение файлов сборок по умолчанию
	DefaultExt = "7z"

	tempPrefix = "dl-"
	tempSuffix = ".tmp"
)

// ErrBadFilename возвращается для имени файла, из которого нельзя извлечь тег сборки
var ErrBadFilename = errors.New("malformed artifact filename")

// Store каталог на диске с файлами сборок вида build<TAG>.<ext>
type Store struct {
	dir string
	ext string
}

// New создает хранилище сборок, при необходимости создавая директорию
func New(dir, ext string) (*Store, error) {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = DefaultExt
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create builds directory: %w", err)
	}
	return &Store{dir: dir, ext: ext}, nil
}

// Dir возвращает директорию хранилища
func (s *Store) Dir() string {
	return s.dir
}

// FileName возвращает каноническое имя файла сборки для тега
func (s *Store) FileName(tag string) string {
	return FilePrefix + tag + "." + s.ext
}

// Path возвращает полный путь к файлу сборки
func (s *Store) Path(tag string) string {
	return filepath.Join(s.dir, s.FileName(tag))
}

// ParseFileName извлекает тег сборки из имени файла build<TAG>.<ext>
func (s *Store) ParseFileName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrBadFilename, name)
	}
	if !strings.HasPrefix(name, FilePrefix) {
		return "", fmt.Errorf("%w: %q", ErrBadFilename, name)
	}

	rest := name[len(FilePrefix):]
	if len(rest) < catalog.TagLength {
		return "", fmt.Errorf("%w: %q", ErrBadFilename, name)
	}

	tag, suffix := rest[:catalog.TagLength], rest[catalog.TagLength:]
	if !strings.EqualFold(suffix, "."+s.ext) {
		return "", fmt.Errorf("%w: %q", ErrBadFilename, name)
	}
	if !catalog.ValidTag(tag) {
		return "", fmt.Errorf("%w: %q", ErrBadFilename, name)
	}

	return tag, nil
}

// Open открывает файл сборки и возвращает его размер
func (s *Store) Open(tag string) (*os.File, int64, error) {
	file, err := os.Open(s.Path(tag))
	if err != nil {
		return nil, 0, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}

	return file, info.Size(), nil
}

// CreateTemp создает уникальный временный файл внутри хранилища.
// Файл находится в той же директории, поэтому Publish сводится к rename.
func (s *Store) CreateTemp() (*os.File, error) {
	path := filepath.Join(s.dir, tempPrefix+uuid.NewString()+tempSuffix)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return file, nil
}

// Publish закрывает временный файл и атомарно переименовывает его в файл сборки.
// При ошибке временный файл удаляется.
func (s *Store) Publish(tmp *os.File, tag string) (string, error) {
	if err := tmp.Sync(); err != nil {
		s.Discard(tmp)
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	path := s.Path(tag)
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to rename file: %w", err)
	}

	return path, nil
}

// Discard закрывает и удаляет временный файл
func (s *Store) Discard(tmp *os.File) {
	tmp.Close()
	os.Remove(tmp.Name())
}

// Remove удаляет файл сборки. Отсутствующий файл ошибкой не считается.
func (s *Store) Remove(tag string) error {
	if err := os.Remove(s.Path(tag)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists проверяет наличие файла сборки
func (s *Store) Exists(tag string) bool {
	info, err := os.Stat(s.Path(tag))
	return err == nil && !info.IsDir()
}

// Sweep удаляет временные файлы, оставшиеся от прерванных загрузок
func (s *Store) Sweep() (int, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, tempSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}
