package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"murmur/internal/api"
	"murmur/internal/config"
	"murmur/internal/queue"
)

type commandContext struct {
	addressFlag *string
	configFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(addressFlag, configFlag *string) *commandContext {
	return &commandContext{
		addressFlag: addressFlag,
		configFlag:  configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// resolvedAddress picks the daemon API address: the --address flag wins, then
// the configured bind, then the built-in default.
func (c *commandContext) resolvedAddress() string {
	if c.addressFlag != nil {
		if addr := strings.TrimSpace(*c.addressFlag); addr != "" {
			return addr
		}
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		if bind := strings.TrimSpace(cfg.API.Bind); bind != "" {
			return bind
		}
	}
	return config.Default().API.Bind
}

func (c *commandContext) apiClient() *api.Client {
	token := ""
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		token = cfg.API.Token
	}
	return api.NewClient(c.resolvedAddress(), token)
}

// withTasks runs fn against the daemon API when it is reachable, and falls
// back to direct queue database access otherwise so queue commands keep
// working while the daemon is stopped.
func (c *commandContext) withTasks(cmdCtx context.Context, fn func(context.Context, taskAPI) error) error {
	client := c.apiClient()
	probeCtx, cancel := context.WithTimeout(cmdCtx, 2*time.Second)
	_, err := client.Status(probeCtx)
	cancel()
	if err == nil {
		return fn(cmdCtx, &clientTasks{client: client})
	}
	if !isDaemonUnreachable(err) {
		return wrapAPIError(err, c.resolvedAddress())
	}

	cfg, cfgErr := c.ensureConfig()
	if cfgErr != nil {
		return cfgErr
	}
	store, openErr := queue.Open(cfg)
	if openErr != nil {
		return fmt.Errorf("open queue store: %w", openErr)
	}
	defer store.Close()
	return fn(cmdCtx, &storeTasks{service: api.NewTaskService(store, cfg)})
}

// withClient runs fn against the daemon API and reports a friendly error when
// the daemon is unreachable. Commands that only make sense against a live
// daemon use this instead of withTasks.
func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client := c.apiClient()
	if err := fn(client); err != nil {
		return wrapAPIError(err, c.resolvedAddress())
	}
	return nil
}

func isDaemonUnreachable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, os.ErrNotExist)
}

func wrapAPIError(err error, address string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon at %s: connection refused; start the daemon with `murmur start`", address)
	case errors.Is(err, syscall.ENOENT), os.IsNotExist(err):
		return fmt.Errorf("connect to daemon at %s: host not reachable; verify the api.bind setting", address)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
