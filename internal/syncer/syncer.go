// Package syncer реализует клиент синхронизации с вышестоящим узлом:
// отправляет свой каталог на /check и скачивает каждый устаревший
// или неизвестный компонент через /download.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Gammanik/buildsync/internal/artifacts"
	"github.com/Gammanik/buildsync/internal/catalog"
	"github.com/Gammanik/buildsync/internal/metastore"
	"github.com/Gammanik/buildsync/internal/metrics"
	"github.com/Gammanik/buildsync/internal/protocol"
	"github.com/Gammanik/buildsync/internal/storage"
	"github.com/Gammanik/buildsync/internal/utils"
)

var (
	// ErrSyncInProgress возвращается, если предыдущий цикл еще не завершен
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNoUpstream возвращается, если не настроен ни один вышестоящий узел
	ErrNoUpstream = errors.New("no upstream configured")
)

// DefaultMaxParallel число одновременных скачиваний по умолчанию
const DefaultMaxParallel = 4

// Report итог одного цикла синхронизации
type Report struct {
	CycleID   string   // Идентификатор цикла для логов
	Upstream  string   // Узел, ответивший на /check
	Stale     []string // Компоненты, о которых сообщил узел
	Installed []string // Успешно установленные компоненты
	Failed    []string // Компоненты, которые не удалось скачать
}

// Syncer клиент синхронизации с вышестоящими узлами
type Syncer struct {
	Catalog     *catalog.Catalog
	Store       *artifacts.Store
	Client      storage.Client
	Journal     metastore.Journal // Может быть nil
	Upstreams   []string
	MaxParallel int
	Metrics     *metrics.Metrics
	Logger      *log.Logger

	running   atomic.Bool
	cycle     atomic.Uint64
	installMu sync.Mutex
}

// Sync выполняет один цикл синхронизации. Если цикл уже идет,
// новый не запускается и возвращается ErrSyncInProgress.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.Metrics.SyncCycle("skipped")
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	if len(s.Upstreams) == 0 {
		return nil, ErrNoUpstream
	}

	report := &Report{CycleID: uuid.NewString()}
	cycle := s.cycle.Add(1) - 1

	// Снимок каталога вместе с неизвестными компонентами
	entries := s.Catalog.Outbound()
	versions := make(protocol.VersionList, 0, len(entries))
	for _, e := range entries {
		versions = append(versions, protocol.Version{Component: e.Component, Tag: e.Tag})
	}

	// Опрашиваем узлы по очереди, пока один не ответит
	var lastErr error
	for _, upstream := range utils.ChooseUpstreams(cycle, s.Upstreams) {
		stale, err := s.Client.Check(ctx, upstream, "", versions)
		if err != nil {
			s.Logger.Printf("Sync %s: check against %s failed: %v", report.CycleID, upstream, err)
			lastErr = err
			continue
		}
		report.Upstream = upstream
		report.Stale = stale
		lastErr = nil
		break
	}
	if report.Upstream == "" {
		s.Metrics.SyncCycle("failed")
		return report, fmt.Errorf("check failed: %w", lastErr)
	}

	if len(report.Stale) == 0 {
		s.Metrics.SyncCycle("ok")
		return report, nil
	}

	s.Logger.Printf("Sync %s: %s reports %d stale components", report.CycleID, report.Upstream, len(report.Stale))

	maxParallel := s.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}

	// Каждый компонент скачивается независимо, ошибка одного не отменяет остальные
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for _, component := range report.Stale {
		g.Go(func() error {
			tag, err := s.fetch(ctx, report.Upstream, component)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.Logger.Printf("Sync %s: failed to fetch %s: %v", report.CycleID, component, err)
				report.Failed = append(report.Failed, component)
				return nil
			}
			s.Logger.Printf("Sync %s: installed %s build %s", report.CycleID, component, tag)
			report.Installed = append(report.Installed, component)
			return nil
		})
	}
	g.Wait()

	sort.Strings(report.Installed)
	sort.Strings(report.Failed)

	if len(report.Failed) > 0 {
		s.Metrics.SyncCycle("partial")
	} else {
		s.Metrics.SyncCycle("ok")
	}
	return report, nil
}

// fetch скачивает сборку компонента во временный файл и устанавливает ее.
// При любой ошибке временный файл удаляется, а каталог не меняется.
func (s *Syncer) fetch(ctx context.Context, upstream, component string) (string, error) {
	tmp, err := s.Store.CreateTemp()
	if err != nil {
		s.Metrics.Download(false, 0)
		return "", err
	}

	hw := utils.NewHashingWriter()
	info, err := s.Client.Download(ctx, upstream, "", component, io.MultiWriter(tmp, hw))
	if err != nil {
		s.Store.Discard(tmp)
		s.Metrics.Download(false, 0)
		return "", err
	}

	tag, err := s.Store.ParseFileName(info.FileName)
	if err != nil {
		s.Store.Discard(tmp)
		s.Metrics.Download(false, 0)
		return "", err
	}

	if err := s.install(tmp, component, tag); err != nil {
		s.Metrics.Download(false, 0)
		return "", err
	}
	s.Metrics.Download(true, hw.Size())

	if s.Journal != nil {
		err := s.Journal.RecordInstall(metastore.InstallRecord{
			Component:   component,
			Tag:         tag,
			FileName:    s.Store.FileName(tag),
			Size:        hw.Size(),
			SHA256:      hw.Sum(),
			Upstream:    upstream,
			InstalledAt: time.Now(),
		})
		if err != nil {
			s.Logger.Printf("Failed to record install of %s: %v", component, err)
		}
	}

	return tag, nil
}

// install публикует файл, обновляет каталог и удаляет сборку, на которую больше никто не ссылается.
// Выполняется под installMu, чтобы удаление старой сборки не пересекалось с публикацией новой.
func (s *Syncer) install(tmp *os.File, component, tag string) error {
	s.installMu.Lock()
	defer s.installMu.Unlock()

	if _, err := s.Store.Publish(tmp, tag); err != nil {
		return err
	}

	previous, err := s.Catalog.Install(component, tag)
	if err != nil {
		// Каталог в памяти уже обновлен, на диск запишет следующая установка
		s.Logger.Printf("Failed to persist catalog: %v", err)
	}

	if previous != "" && !catalog.SameTag(previous, tag) && !s.Catalog.References(previous) {
		if err := s.Store.Remove(previous); err != nil {
			s.Logger.Printf("Failed to remove superseded build %s: %v", s.Store.FileName(previous), err)
		}
	}

	return nil
}
