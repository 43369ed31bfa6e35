package cli

import (
	"strings"
	"sync"

	"github.com/mrlokans/readinglog/internal/config"
	"github.com/mrlokans/readinglog/internal/entrypoint"
)

type commandContext struct {
	configFlag   *string
	databaseFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, databaseFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		databaseFlag: databaseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.LoadFrom(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.databaseFlag != nil && strings.TrimSpace(*c.databaseFlag) != "" {
			cfg.Database.Path = strings.TrimSpace(*c.databaseFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withApp opens the library for the duration of fn. Commands that write
// session state pass exclusive so they never run beside a server.
func (c *commandContext) withApp(exclusive bool, fn func(*entrypoint.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	app, err := entrypoint.Open(cfg, exclusive)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
