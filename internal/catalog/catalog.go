// internal/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Entry пара компонент/тег сборки
type Entry struct {
	Component string `json:"component"`
	Tag       string `json:"tag"`
}

// Catalog хранит установленные версии компонентов и компоненты,
// замеченные во входящих запросах, но отсутствующие в каталоге.
// Все последовательности чтение-изменение выполняются под одной блокировкой.
type Catalog struct {
	mu       sync.RWMutex
	versions map[string]string
	unknown  mapset.Set[string]

	path      string
	persistMu sync.Mutex
	logger    *log.Logger
}

// New создает каталог из готового набора версий.
// Записи с некорректными тегами отбрасываются.
func New(path string, versions map[string]string, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	c := &Catalog{
		versions: make(map[string]string, len(versions)),
		unknown:  mapset.NewThreadUnsafeSet[string](),
		path:     path,
		logger:   logger,
	}

	for component, tag := range versions {
		if component == "" || !ValidTag(tag) {
			logger.Printf("Dropping catalog entry %q: malformed tag %q", component, tag)
			continue
		}
		c.versions[component] = tag
	}

	return c
}

// Load читает каталог из JSON-файла. Отсутствующий файл означает пустой каталог.
func Load(path string, logger *log.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(path, nil, logger), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	versions := map[string]string{}
	if err := json.Unmarshal(data, &versions); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	return New(path, versions, logger), nil
}

// Get возвращает тег установленной сборки компонента
func (c *Catalog) Get(component string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tag, ok := c.versions[component]
	return tag, ok
}

// Versions возвращает копию каталога
func (c *Catalog) Versions() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]string, len(c.versions))
	for component, tag := range c.versions {
		out[component] = tag
	}
	return out
}

// Observe отмечает компонент из входящего запроса. Если компонента нет
// в каталоге и он встречается впервые, он записывается как неизвестный
// и возвращается true.
func (c *Catalog) Observe(component string) bool {
	if component == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.versions[component]; ok {
		return false
	}
	return c.unknown.Add(component)
}

// IsUnknown сообщает, записан ли компонент как неизвестный
func (c *Catalog) IsUnknown(component string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.unknown.Contains(component)
}

// Unknowns возвращает отсортированный список неизвестных компонентов
func (c *Catalog) Unknowns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := c.unknown.ToSlice()
	sort.Strings(out)
	return out
}

// Outbound собирает снимок для запроса /check к вышестоящему узлу:
// записи каталога и неизвестные компоненты с тегом SentinelTag
func (c *Catalog) Outbound() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.versions)+c.unknown.Cardinality())
	for component, tag := range c.versions {
		entries = append(entries, Entry{Component: component, Tag: tag})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Component < entries[j].Component })

	unknown := c.unknown.ToSlice()
	sort.Strings(unknown)
	for _, component := range unknown {
		entries = append(entries, Entry{Component: component, Tag: SentinelTag})
	}

	return entries
}

// References проверяет, ссылается ли хоть одна запись каталога на тег
func (c *Catalog) References(tag string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.versions {
		if SameTag(t, tag) {
			return true
		}
	}
	return false
}

// Install записывает успешно скачанную сборку: обновляет каталог, снимает
// отметку неизвестного компонента и сохраняет каталог на диск.
// Возвращает предыдущий тег компонента (пустой, если его не было).
// Ошибка сохранения не откатывает изменение в памяти.
func (c *Catalog) Install(component, tag string) (string, error) {
	if component == "" {
		return "", errors.New("empty component name")
	}
	if _, err := ParseTag(tag); err != nil {
		return "", err
	}

	c.mu.Lock()
	previous := c.versions[component]
	c.versions[component] = tag
	c.unknown.Remove(component)
	c.mu.Unlock()

	if err := c.Save(); err != nil {
		return previous, err
	}
	return previous, nil
}

// Save перезаписывает файл каталога целиком. Снимок берется под блокировкой
// записи на диск, поэтому последний записавший всегда сохраняет свежее состояние.
func (c *Catalog) Save() error {
	if c.path == "" {
		return nil
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	data, err := json.MarshalIndent(c.Versions(), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace catalog: %w", err)
	}

	return nil
}
