package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultRefreshThreshold = 5 * time.Minute
	DefaultOperationTimeout = 30 * time.Second
	DefaultProbeTimeout     = 10 * time.Second
	DefaultTickInterval     = time.Minute
	DefaultWorkerPoolSize   = 4
	DefaultHealthRetention  = 100
	DefaultStopGracePeriod  = 10 * time.Second
)

// ProviderConfig carries per-provider tuning. Providers tolerate different
// refresh lead times, so the threshold is not global.
type ProviderConfig struct {
	RefreshThreshold time.Duration `koanf:"refresh_threshold" mapstructure:"refresh_threshold"`
	ProbeTimeout     time.Duration `koanf:"probe_timeout" mapstructure:"probe_timeout"`
}

type SchedulerConfig struct {
	TickInterval    time.Duration `koanf:"tick_interval" mapstructure:"tick_interval"`
	WorkerPoolSize  int           `koanf:"worker_pool_size" mapstructure:"worker_pool_size"`
	HealthRetention int           `koanf:"health_retention" mapstructure:"health_retention"`
	StopGracePeriod time.Duration `koanf:"stop_grace_period" mapstructure:"stop_grace_period"`
}

type Config struct {
	ServiceName             string                    `koanf:"service_name" mapstructure:"service_name"`
	DefaultRefreshThreshold time.Duration             `koanf:"default_refresh_threshold" mapstructure:"default_refresh_threshold"`
	OperationTimeout        time.Duration             `koanf:"operation_timeout" mapstructure:"operation_timeout"`
	Providers               map[string]ProviderConfig `koanf:"providers" mapstructure:"providers"`
	Scheduler               SchedulerConfig           `koanf:"scheduler" mapstructure:"scheduler"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:             "integrations",
		DefaultRefreshThreshold: DefaultRefreshThreshold,
		OperationTimeout:        DefaultOperationTimeout,
		Providers:               map[string]ProviderConfig{},
		Scheduler: SchedulerConfig{
			TickInterval:    DefaultTickInterval,
			WorkerPoolSize:  DefaultWorkerPoolSize,
			HealthRetention: DefaultHealthRetention,
			StopGracePeriod: DefaultStopGracePeriod,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.DefaultRefreshThreshold < 0 {
		return fmt.Errorf("core: default_refresh_threshold must not be negative")
	}
	if c.Scheduler.TickInterval < 0 {
		return fmt.Errorf("core: scheduler.tick_interval must not be negative")
	}
	if c.Scheduler.WorkerPoolSize < 0 {
		return fmt.Errorf("core: scheduler.worker_pool_size must not be negative")
	}
	if c.Scheduler.HealthRetention < 0 {
		return fmt.Errorf("core: scheduler.health_retention must not be negative")
	}
	return nil
}

// RefreshThresholdFor resolves the per-provider refresh lead time, falling
// back to the module default.
func (c Config) RefreshThresholdFor(provider string) time.Duration {
	if pc, ok := c.Providers[strings.TrimSpace(strings.ToLower(provider))]; ok && pc.RefreshThreshold > 0 {
		return pc.RefreshThreshold
	}
	if c.DefaultRefreshThreshold > 0 {
		return c.DefaultRefreshThreshold
	}
	return DefaultRefreshThreshold
}

func (c Config) ProbeTimeoutFor(provider string) time.Duration {
	if pc, ok := c.Providers[strings.TrimSpace(strings.ToLower(provider))]; ok && pc.ProbeTimeout > 0 {
		return pc.ProbeTimeout
	}
	return DefaultProbeTimeout
}

func (c Config) operationTimeout() time.Duration {
	if c.OperationTimeout > 0 {
		return c.OperationTimeout
	}
	return DefaultOperationTimeout
}
