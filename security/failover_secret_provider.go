package security

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
)

// ErrorCodeSecretProviderFailed marks encryption failures that exhausted the
// configured key providers. Callers can branch on it with core.HasErrorCode.
const ErrorCodeSecretProviderFailed = "INTEGRATIONS_SECRET_PROVIDER_FAILED"

type SecretProviderFailurePolicy string

const (
	SecretProviderFailurePolicyStrict   SecretProviderFailurePolicy = "strict_fail"
	SecretProviderFailurePolicyFallback SecretProviderFailurePolicy = "fallback_allowed"
)

// SecretProviderDiagnostic describes one failover event for hosts that want
// visibility into key provider degradation.
type SecretProviderDiagnostic struct {
	OccurredAt time.Time
	Operation  string
	Policy     SecretProviderFailurePolicy
	Outcome    string
	Primary    string
	Fallback   string
	Error      string
}

type SecretProviderDiagnosticHook func(event SecretProviderDiagnostic)

type FailoverOption func(*FailoverSecretProvider)

type keyStamp struct {
	ID      string
	Version int
}

// FailoverSecretProvider wraps a primary secret provider with an optional
// fallback. Strict policy surfaces primary failures; fallback policy retries
// the operation against the fallback provider. Decrypt always tries both
// providers under the fallback policy so records sealed before a failover
// stay readable.
type FailoverSecretProvider struct {
	primary        core.SecretProvider
	fallback       core.SecretProvider
	policy         SecretProviderFailurePolicy
	diagnosticHook SecretProviderDiagnosticHook
	logger         core.Logger

	mu      sync.RWMutex
	lastKey keyStamp
}

func NewFailoverSecretProvider(primary core.SecretProvider, opts ...FailoverOption) (*FailoverSecretProvider, error) {
	if primary == nil {
		return nil, badSecretInput("security: primary secret provider is required")
	}
	provider := &FailoverSecretProvider{
		primary: primary,
		policy:  SecretProviderFailurePolicyStrict,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	provider.policy = normalizeFailurePolicy(provider.policy)
	if provider.policy == SecretProviderFailurePolicyFallback && provider.fallback == nil {
		return nil, badSecretInput("security: fallback policy requires a configured fallback secret provider")
	}
	provider.stampEncryptionKey(provider.primary)
	return provider, nil
}

func WithFallbackSecretProvider(provider core.SecretProvider) FailoverOption {
	return func(f *FailoverSecretProvider) {
		if f == nil {
			return
		}
		f.fallback = provider
	}
}

func WithSecretProviderFailurePolicy(policy SecretProviderFailurePolicy) FailoverOption {
	return func(f *FailoverSecretProvider) {
		if f == nil {
			return
		}
		f.policy = normalizeFailurePolicy(policy)
	}
}

func WithSecretProviderDiagnostics(hook SecretProviderDiagnosticHook) FailoverOption {
	return func(f *FailoverSecretProvider) {
		if f == nil {
			return
		}
		f.diagnosticHook = hook
	}
}

// WithFailoverLogger mirrors diagnostic events onto the module logger, so
// hosts get failover visibility without wiring a hook.
func WithFailoverLogger(logger core.Logger) FailoverOption {
	return func(f *FailoverSecretProvider) {
		if f == nil {
			return
		}
		f.logger = logger
	}
}

func (p *FailoverSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, badSecretInput("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, badSecretInput("security: plaintext is required")
	}
	return p.runWithFailover(ctx, "encrypt", true, func(ctx context.Context, provider core.SecretProvider) ([]byte, error) {
		return provider.Encrypt(ctx, plaintext)
	})
}

func (p *FailoverSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, badSecretInput("security: secret provider is nil")
	}
	if len(ciphertext) == 0 {
		return nil, badSecretInput("security: ciphertext is required")
	}
	return p.runWithFailover(ctx, "decrypt", false, func(ctx context.Context, provider core.SecretProvider) ([]byte, error) {
		return provider.Decrypt(ctx, ciphertext)
	})
}

// runWithFailover drives one operation through the primary and, when policy
// allows, the fallback. Only successful encrypts move the key stamp: decrypt
// succeeding against the fallback says nothing about which key seals new
// payloads.
func (p *FailoverSecretProvider) runWithFailover(
	ctx context.Context,
	operation string,
	stampKey bool,
	attempt func(ctx context.Context, provider core.SecretProvider) ([]byte, error),
) ([]byte, error) {
	result, primaryErr := attempt(ctx, p.primary)
	if primaryErr == nil {
		if stampKey {
			p.stampEncryptionKey(p.primary)
		}
		return result, nil
	}
	p.observeFailover(operation, "primary_failed", primaryErr)

	if p.policy == SecretProviderFailurePolicyStrict || p.fallback == nil {
		return nil, secretProviderError(operation, fmt.Errorf("security: primary %s failed with %s policy: %w", operation, p.policy, primaryErr))
	}

	result, fallbackErr := attempt(ctx, p.fallback)
	if fallbackErr != nil {
		p.observeFailover(operation, "fallback_failed", fallbackErr)
		return nil, secretProviderError(operation, fmt.Errorf("security: primary %s failed: %v; fallback %s failed: %w", operation, primaryErr, operation, fallbackErr))
	}
	if stampKey {
		p.stampEncryptionKey(p.fallback)
	}
	p.observeFailover(operation, "fallback_succeeded", primaryErr)
	return result, nil
}

// Metadata reports the key that sealed the most recent encryption, falling
// back to whichever configured provider exposes key metadata.
func (p *FailoverSecretProvider) Metadata() (string, int) {
	if p == nil {
		return "", 0
	}
	p.mu.RLock()
	last := p.lastKey
	p.mu.RUnlock()
	if last.ID != "" {
		return last.ID, last.Version
	}
	if stamp, ok := readKeyStamp(p.primary); ok {
		return stamp.ID, stamp.Version
	}
	if stamp, ok := readKeyStamp(p.fallback); ok {
		return stamp.ID, stamp.Version
	}
	return "", 0
}

func (p *FailoverSecretProvider) observeFailover(operation string, outcome string, err error) {
	if p == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if p.logger != nil {
		log := p.logger.Warn
		if outcome == "fallback_succeeded" {
			log = p.logger.Info
		}
		log("secret provider failover",
			"operation", operation,
			"outcome", outcome,
			"policy", string(p.policy),
			"error", msg,
		)
	}
	if p.diagnosticHook == nil {
		return
	}
	p.diagnosticHook(SecretProviderDiagnostic{
		OccurredAt: time.Now().UTC(),
		Operation:  operation,
		Policy:     p.policy,
		Outcome:    outcome,
		Primary:    describeSecretProvider(p.primary),
		Fallback:   describeSecretProvider(p.fallback),
		Error:      msg,
	})
}

func (p *FailoverSecretProvider) stampEncryptionKey(provider core.SecretProvider) {
	stamp, ok := readKeyStamp(provider)
	if !ok {
		return
	}
	p.mu.Lock()
	p.lastKey = stamp
	p.mu.Unlock()
}

func normalizeFailurePolicy(policy SecretProviderFailurePolicy) SecretProviderFailurePolicy {
	normalized := SecretProviderFailurePolicy(strings.ToLower(strings.TrimSpace(string(policy))))
	if normalized == SecretProviderFailurePolicyFallback {
		return SecretProviderFailurePolicyFallback
	}
	return SecretProviderFailurePolicyStrict
}

func readKeyStamp(provider core.SecretProvider) (keyStamp, bool) {
	if provider == nil {
		return keyStamp{}, false
	}
	metadataProvider, ok := provider.(interface{ Metadata() (string, int) })
	if !ok {
		return keyStamp{}, false
	}
	keyID, version := metadataProvider.Metadata()
	keyID = strings.TrimSpace(keyID)
	if keyID == "" || version <= 0 {
		return keyStamp{}, false
	}
	return keyStamp{ID: keyID, Version: version}, true
}

func describeSecretProvider(provider core.SecretProvider) string {
	if provider == nil {
		return ""
	}
	label := fmt.Sprintf("%T", provider)
	if stamp, ok := readKeyStamp(provider); ok {
		return fmt.Sprintf("%s(%s:%d)", label, stamp.ID, stamp.Version)
	}
	return label
}

func badSecretInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(core.ErrorCodeBadInput)
}

func secretProviderError(operation string, cause error) error {
	return goerrors.Wrap(cause, goerrors.CategoryExternal, "security: "+operation+" exhausted configured key providers").
		WithTextCode(ErrorCodeSecretProviderFailed)
}

var _ core.SecretProvider = (*FailoverSecretProvider)(nil)
