package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Gammanik/buildsync/internal/artifacts"
	"github.com/Gammanik/buildsync/internal/catalog"
	"github.com/Gammanik/buildsync/internal/config"
	"github.com/Gammanik/buildsync/internal/metastore"
	"github.com/Gammanik/buildsync/internal/metrics"
	"github.com/Gammanik/buildsync/internal/storage"
	"github.com/Gammanik/buildsync/internal/syncer"
)

// node собранные компоненты узла
type node struct {
	logger   *log.Logger
	catalog  *catalog.Catalog
	store    *artifacts.Store
	journal  metastore.Journal
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	syncer   *syncer.Syncer
}

func newNode(cfg config.Config) (*node, error) {
	logger := log.New(io.Discard, "", 0)
	if cfg.Logging {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	// Создаем директорию для хранения сборок и убираем остатки прерванных загрузок
	store, err := artifacts.New(cfg.BuildsDir, cfg.ArtifactExt)
	if err != nil {
		return nil, err
	}
	if swept, err := store.Sweep(); err != nil {
		logger.Printf("Failed to clean temp files: %v", err)
	} else if swept > 0 {
		logger.Printf("Removed %d leftover temp files", swept)
	}

	cat, err := catalog.Load(cfg.CatalogPath, logger)
	if err != nil {
		return nil, err
	}
	for component, tag := range cat.Versions() {
		if !store.Exists(tag) {
			logger.Printf("Warning: %s is missing for %s", store.FileName(tag), component)
		}
	}

	var journal metastore.Journal
	if cfg.JournalPath != "" {
		bs, err := metastore.NewBoltStore(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		journal = bs
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	return &node{
		logger:   logger,
		catalog:  cat,
		store:    store,
		journal:  journal,
		registry: registry,
		metrics:  m,
		syncer: &syncer.Syncer{
			Catalog:     cat,
			Store:       store,
			Client:      storage.New(cfg.UpstreamTimeout),
			Journal:     journal,
			Upstreams:   cfg.Upstreams(),
			MaxParallel: cfg.MaxParallelDownloads,
			Metrics:     m,
			Logger:      logger,
		},
	}, nil
}

// Close закрывает журнал
func (n *node) Close() error {
	if n.journal != nil {
		return n.journal.Close()
	}
	return nil
}
