package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Provider is the upstream connector for one integration. Implementations
// perform the actual authorization, refresh, revocation and probe calls;
// redirect/browser mechanics are the host's concern.
type Provider interface {
	ID() string
	Authenticate(ctx context.Context, req GrantRequest) (Grant, error)
	Refresh(ctx context.Context, current Record) (Grant, error)
	Revoke(ctx context.Context, current Record) error
	Probe(ctx context.Context, current Record) error
}

type Registry interface {
	Register(provider Provider) error
	Get(providerID string) (Provider, bool)
	List() []Provider
}

// CredentialStore persists encrypted credential snapshots, one row per
// provider. The manager owns the authoritative in-memory state and writes
// through.
type CredentialStore interface {
	SaveSnapshot(ctx context.Context, in SaveCredentialInput) error
	GetByProvider(ctx context.Context, provider string) (StoredCredential, error)
	DeleteByProvider(ctx context.Context, provider string) error
	LoadAll(ctx context.Context) ([]StoredCredential, error)
}

type SaveCredentialInput struct {
	Provider         string
	EncryptedPayload []byte
	PayloadFormat    string
	PayloadVersion   int
	State            CredentialState
	ExpiresAt        *time.Time
	LastError        string
}

type StoredCredential struct {
	Provider         string
	EncryptedPayload []byte
	PayloadFormat    string
	PayloadVersion   int
	State            CredentialState
	ExpiresAt        *time.Time
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SecretProvider supplies encryption at rest for credential payloads.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// CredentialCodec encodes a Record into the payload persisted by the store.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(record Record) ([]byte, error)
	Decode(payload []byte) (Record, error)
}

// HealthSink receives probe results; the health trail implements it.
type HealthSink interface {
	Record(result ProbeResult)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// ScopeInfo is the slice of a catalog scope descriptor the lifecycle manager
// validates against.
type ScopeInfo struct {
	ID             string
	Required       bool
	RequiresReauth bool
}

// CatalogView is what the lifecycle manager needs from the dependency graph
// resolver: authorization requirements and scope descriptors per provider.
type CatalogView interface {
	RequiresAuthorization(integrationID string) (bool, error)
	Scopes(integrationID string) ([]ScopeInfo, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// ProviderLocker guards refresh runs across processes. The in-memory locker
// suffices for a single-process host.
type ProviderLocker interface {
	Acquire(ctx context.Context, provider string, ttl time.Duration) (LockHandle, error)
}

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

// JobExecutionMessage carries a queued lifecycle job for hosts that drive
// refreshes through a worker queue instead of the in-process scheduler.
type JobExecutionMessage struct {
	JobID          string
	Provider       string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}
