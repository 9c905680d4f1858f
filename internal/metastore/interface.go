package metastore

import (
	"errors"
	"time"
)

// ErrNotFound возвращается, если для компонента нет ни одной записи
var ErrNotFound = errors.New("install record not found")

// InstallRecord содержит информацию об одной установке сборки
type InstallRecord struct {
	Component   string    `json:"component"`   // Имя компонента
	Tag         string    `json:"tag"`         // Тег установленной сборки
	FileName    string    `json:"fileName"`    // Имя файла сборки
	Size        int64     `json:"size"`        // Размер файла в байтах
	SHA256      string    `json:"sha256"`      // SHA-256 полученных байт (только для аудита)
	Upstream    string    `json:"upstream"`    // URL узла, с которого скачана сборка
	InstalledAt time.Time `json:"installedAt"` // Время установки
}

// Journal интерфейс журнала установок
type Journal interface {
	// RecordInstall сохраняет запись об установке
	RecordInstall(rec InstallRecord) error

	// Latest возвращает последнюю установку компонента
	Latest(component string) (*InstallRecord, error)

	// LatestAll возвращает последние установки всех компонентов
	LatestAll() ([]InstallRecord, error)

	// History возвращает все установки компонента в порядке времени
	History(component string) ([]InstallRecord, error)

	// Close закрывает журнал
	Close() error
}
