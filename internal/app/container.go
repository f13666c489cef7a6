// Package app wires the harvester's collaborators.
package app

import (
	"fmt"

	"go.uber.org/dig"

	"igharvest/internal/config"
	"igharvest/internal/harvest"
	"igharvest/internal/igclient"
	"igharvest/internal/store/sqlite"
)

func ProvideStore(cfg config.Config) (*sqlite.Store, error) {
	st, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Storage.DBPath, err)
	}
	return st, nil
}

func ProvideClient(cfg config.Config) igclient.Client {
	return igclient.NewHTTPClient(cfg.API)
}

func ProvideStores(st *sqlite.Store) harvest.Stores {
	return harvest.Stores{Tokens: st, Interactions: st, Users: st, Activities: st, Cohort: st, KPIs: st}
}

func ProvideHarvester(client igclient.Client, stores harvest.Stores, cfg config.Config) *harvest.Harvester {
	return harvest.New(client, stores, cfg.Harvest)
}

// BuildContainer registers every provider. Nothing is constructed until Invoke.
func BuildContainer(cfg config.Config) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() config.Config { return cfg }); err != nil {
		return nil, fmt.Errorf("failed to provide config: %w", err)
	}
	if err := container.Provide(ProvideStore); err != nil {
		return nil, fmt.Errorf("failed to provide store: %w", err)
	}
	if err := container.Provide(ProvideClient); err != nil {
		return nil, fmt.Errorf("failed to provide api client: %w", err)
	}
	if err := container.Provide(ProvideStores); err != nil {
		return nil, fmt.Errorf("failed to provide stores: %w", err)
	}
	if err := container.Provide(ProvideHarvester); err != nil {
		return nil, fmt.Errorf("failed to provide harvester: %w", err)
	}
	return container, nil
}
