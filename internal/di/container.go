// Package di wires the application's components into a samber/do container.
package di

import (
	"github.com/samber/do/v2"

	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/di/providers"
	"github.com/reelfeed/reelfeed/internal/logger"
)

// NewContainer creates the container. opts is the configuration source
// chosen on the command line; nothing is built until first invoked.
func NewContainer(opts config.LoadOptions) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, opts)
	do.ProvideValue(injector, &providers.Lifecycle{})
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideCache)

	// Pipeline
	do.Provide(injector, providers.ProvideScheme)
	do.Provide(injector, providers.ProvideNormalizer)
	do.Provide(injector, providers.ProvideUpstream)
	do.Provide(injector, providers.ProvideWriter)
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideRunner)
	do.Provide(injector, providers.ProvideScanner)

	return injector
}

// Close shuts down every handle the container built, newest first.
func Close(injector *do.RootScope) {
	lc, err := do.Invoke[*providers.Lifecycle](injector)
	if err != nil {
		return
	}
	log, err := do.Invoke[*logger.Logger](injector)
	if err != nil {
		log = logger.Discard()
	}
	for _, err := range lc.Shutdown() {
		log.WithError(err).Error("shutdown failed")
	}
}
