package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type managerBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metrics         MetricsRecorder
	errorMapper     ErrorMapper
	secretProvider  SecretProvider
	credentialStore CredentialStore
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	catalog         CatalogView
	registry        Registry
	codec           CredentialCodec
	backoff         BackoffScheduler
	providerLocker  ProviderLocker
	healthSink      HealthSink
	nowFn           func() time.Time
}

type Option func(*managerBuilder)

func WithLogger(logger Logger) Option {
	return func(b *managerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *managerBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *managerBuilder) {
		b.metrics = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *managerBuilder) {
		b.errorMapper = mapper
	}
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *managerBuilder) {
		b.secretProvider = provider
	}
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *managerBuilder) {
		b.credentialStore = store
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *managerBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *managerBuilder) {
		b.optionsResolver = resolver
	}
}

func WithCatalog(view CatalogView) Option {
	return func(b *managerBuilder) {
		b.catalog = view
	}
}

func WithRegistry(registry Registry) Option {
	return func(b *managerBuilder) {
		b.registry = registry
	}
}

func WithCredentialCodec(codec CredentialCodec) Option {
	return func(b *managerBuilder) {
		b.codec = codec
	}
}

func WithBackoffScheduler(scheduler BackoffScheduler) Option {
	return func(b *managerBuilder) {
		b.backoff = scheduler
	}
}

func WithProviderLocker(locker ProviderLocker) Option {
	return func(b *managerBuilder) {
		b.providerLocker = locker
	}
}

func WithHealthSink(sink HealthSink) Option {
	return func(b *managerBuilder) {
		b.healthSink = sink
	}
}

// WithClock overrides time resolution; tests pin expiry boundaries with it.
func WithClock(nowFn func() time.Time) Option {
	return func(b *managerBuilder) {
		b.nowFn = nowFn
	}
}

func defaultManagerBuilder(cfg Config) managerBuilder {
	return managerBuilder{
		runtimeConfig:   cfg,
		metrics:         NopMetricsRecorder{},
		errorMapper:     integrationErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		registry:        NewProviderRegistry(),
		codec:           JSONCredentialCodec{},
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.DefaultRefreshThreshold > 0 {
		layer["default_refresh_threshold"] = cfg.DefaultRefreshThreshold
	}
	if includeZero || cfg.OperationTimeout > 0 {
		layer["operation_timeout"] = cfg.OperationTimeout
	}

	if includeZero || len(cfg.Providers) > 0 {
		providers := map[string]any{}
		for provider, pc := range cfg.Providers {
			providers[provider] = map[string]any{
				"refresh_threshold": pc.RefreshThreshold,
				"probe_timeout":     pc.ProbeTimeout,
			}
		}
		layer["providers"] = providers
	}

	scheduler := map[string]any{}
	if includeZero || cfg.Scheduler.TickInterval > 0 {
		scheduler["tick_interval"] = cfg.Scheduler.TickInterval
	}
	if includeZero || cfg.Scheduler.WorkerPoolSize > 0 {
		scheduler["worker_pool_size"] = cfg.Scheduler.WorkerPoolSize
	}
	if includeZero || cfg.Scheduler.HealthRetention > 0 {
		scheduler["health_retention"] = cfg.Scheduler.HealthRetention
	}
	if includeZero || cfg.Scheduler.StopGracePeriod > 0 {
		scheduler["stop_grace_period"] = cfg.Scheduler.StopGracePeriod
	}
	if includeZero || len(scheduler) > 0 {
		layer["scheduler"] = scheduler
	}
	return layer
}
