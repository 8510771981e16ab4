package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/contentstore"
	"github.com/Khamel83/atlas-sub014/internal/daemon"
	"github.com/Khamel83/atlas-sub014/internal/dedup"
	"github.com/Khamel83/atlas-sub014/internal/fetch"
	"github.com/Khamel83/atlas-sub014/internal/logging"
	"github.com/Khamel83/atlas-sub014/internal/pathway"
	"github.com/Khamel83/atlas-sub014/internal/pipeline"
	"github.com/Khamel83/atlas-sub014/internal/quality"
	"github.com/Khamel83/atlas-sub014/internal/queue"
	"github.com/Khamel83/atlas-sub014/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	engine, err := dedup.Open(cfg)
	if err != nil {
		logger.Error("open dedup index", logging.Error(err))
		_ = store.Close()
		return
	}
	defer engine.Close()

	content, err := contentstore.Open(cfg)
	if err != nil {
		logger.Error("open content store", logging.Error(err))
		_ = store.Close()
		return
	}
	defer content.Close()

	resolver := pathway.NewResolver(cfg)
	fetcher := fetch.NewFetcher(cfg, logger, fetch.NewDefaultMethods(cfg)...)
	classifier := quality.NewClassifier(cfg)
	processor := pipeline.NewProcessor(cfg, store, resolver, fetcher, classifier, engine, content, logger)
	manager := workflow.NewManager(cfg, store, processor, logger)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("atlasd shutting down")
}
