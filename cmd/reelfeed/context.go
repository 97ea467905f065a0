package main

import (
	"sync"

	"github.com/samber/do/v2"

	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/di"
)

type commandContext struct {
	configPath string
	envFile    string
	logLevel   string
	storePath  string
	indexPath  string

	once     sync.Once
	injector *do.RootScope
}

func (c *commandContext) container() *do.RootScope {
	c.once.Do(func() {
		c.injector = di.NewContainer(config.LoadOptions{
			Path:    c.configPath,
			EnvFile: c.envFile,
			Overrides: config.Overrides{
				LogLevel:  c.logLevel,
				StorePath: c.storePath,
				IndexPath: c.indexPath,
			},
		})
	})
	return c.injector
}

func (c *commandContext) close() {
	if c.injector != nil {
		di.Close(c.injector)
	}
}

// invoke builds T from the container.
func invoke[T any](c *commandContext) (T, error) {
	return do.Invoke[T](c.container())
}
