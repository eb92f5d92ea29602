// Package app wires the grouping service from configuration. Both binaries
// share it.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/pricetracker/backend/config"
	"github.com/pricetracker/backend/internal/domain"
	"github.com/pricetracker/backend/internal/infrastructure/memory"
	"github.com/pricetracker/backend/internal/infrastructure/sqlstore"
	"github.com/pricetracker/backend/internal/rules"
	"github.com/pricetracker/backend/internal/usecase"
)

// Container holds the initialized dependencies
type Container struct {
	Config     *config.Config
	Store      domain.ProductStore
	Registry   *usecase.NormalizerRegistry
	Aggregator *usecase.GroupAggregator

	closeStore func() error
}

// NewContainer opens the store, loads the rules and builds the aggregator
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	if err := c.initStore(ctx); err != nil {
		return nil, err
	}

	sets, err := rules.LoadOrDefaults(cfg.Rules.Dir)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	c.Registry, err = usecase.NewRegistry(sets)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to build normalizers: %w", err)
	}
	log.Printf("[APP] Normalizers registered: %v", c.Registry.Categories())

	c.Aggregator = usecase.NewGroupAggregator(c.Store, c.Registry, usecase.AggregatorConfig{
		ImagePriority: cfg.Grouping.ImagePriority,
		Workers:       cfg.Grouping.Workers,
	})

	return c, nil
}

func (c *Container) initStore(ctx context.Context) error {
	switch c.Config.Store.Driver {
	case "memory":
		c.Store = memory.NewStore()
		c.closeStore = func() error { return nil }
		log.Println("[APP] Using in-memory store (data is lost on exit)")
	default:
		s, err := sqlstore.Open(ctx, c.Config.Store.Driver, c.Config.Store.DSN)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		c.Store = s
		c.closeStore = s.Close
	}
	return nil
}

// Close releases the store
func (c *Container) Close() error {
	if c.closeStore == nil {
		return nil
	}
	return c.closeStore()
}
