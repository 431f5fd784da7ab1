package main

import (
	"context"
	"fmt"
	"log"

	"github.com/annikahq/planner-bridge/internal/adapter"
	"github.com/annikahq/planner-bridge/internal/auth"
	"github.com/annikahq/planner-bridge/internal/config"
	"github.com/annikahq/planner-bridge/internal/graph"
	"github.com/annikahq/planner-bridge/internal/journal"
	"github.com/annikahq/planner-bridge/internal/store"
	"github.com/annikahq/planner-bridge/internal/syncer"
)

// bridge bundles everything a sync command needs, with cleanup.
type bridge struct {
	engine  *syncer.Engine
	store   *store.Redis
	journal *journal.Journal
	tokens  *auth.Preferrer
}

// close releases resources in reverse construction order.
func (b *bridge) close() {
	if b.journal != nil {
		_ = b.journal.Close()
	}
	if b.store != nil {
		_ = b.store.Close()
	}
}

// buildBridge wires the store, auth, Graph client, journal, and engine
// from the validated config. events may be nil.
func buildBridge(ctx context.Context, cfg *config.Config, logger *log.Logger, events syncer.EventSink) (*bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.NewRedis(ctx, store.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		Namespace: cfg.Redis.Namespace,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	provider, err := auth.NewProvider(auth.Config{
		TenantID:     cfg.Auth.TenantID,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		RefreshToken: cfg.Auth.RefreshToken,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	tokens := auth.NewPreferrer(provider, logger)

	client := graph.NewClient(tokens, &graph.Config{
		BaseURL: cfg.Graph.BaseURL,
		Timeout: cfg.Graph.Timeout,
		Logger:  logger,
	})

	jrnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	engine, err := syncer.NewEngine(&syncer.Config{
		Store:         st,
		Graph:         client,
		Adapter:       adapter.New(nil, logger),
		Tokens:        tokens,
		Journal:       jrnl,
		Events:        events,
		PlanID:        cfg.Graph.PlanID,
		BucketID:      cfg.Graph.BucketID,
		OpTimeout:     cfg.Sync.OpTimeout,
		SweepInterval: cfg.Sync.Interval,
		Logger:        logger,
	})
	if err != nil {
		_ = jrnl.Close()
		_ = st.Close()
		return nil, err
	}

	return &bridge{engine: engine, store: st, journal: jrnl, tokens: tokens}, nil
}
