package security

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-integrations/core"
)

type flakySecretProvider struct {
	mu         sync.Mutex
	encryptErr error
	decryptErr error
	keyID      string
	version    int
	delegate   *AppKeySecretProvider
}

func newFlakySecretProvider(t *testing.T, key, keyID string, version int) *flakySecretProvider {
	t.Helper()
	delegate, err := NewAppKeySecretProviderFromString(key, WithKeyID(keyID), WithVersion(version))
	if err != nil {
		t.Fatalf("new delegate provider: %v", err)
	}
	return &flakySecretProvider{delegate: delegate, keyID: keyID, version: version}
}

func (p *flakySecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	p.mu.Lock()
	err := p.encryptErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return p.delegate.Encrypt(ctx, plaintext)
}

func (p *flakySecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	p.mu.Lock()
	err := p.decryptErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return p.delegate.Decrypt(ctx, ciphertext)
}

func (p *flakySecretProvider) Metadata() (string, int) {
	return p.keyID, p.version
}

func (p *flakySecretProvider) fail(encrypt, decrypt error) {
	p.mu.Lock()
	p.encryptErr = encrypt
	p.decryptErr = decrypt
	p.mu.Unlock()
}

func TestFailoverSecretProvider_StrictSurfacesPrimaryFailure(t *testing.T) {
	ctx := context.Background()

	primary := newFlakySecretProvider(t, "primary key material", "primary", 1)
	primary.fail(fmt.Errorf("kms unavailable"), nil)

	provider, err := NewFailoverSecretProvider(primary)
	if err != nil {
		t.Fatalf("new failover provider: %v", err)
	}
	_, err = provider.Encrypt(ctx, []byte("payload"))
	if err == nil {
		t.Fatal("expected strict policy to surface the primary failure")
	}
	if !core.HasErrorCode(err, ErrorCodeSecretProviderFailed) {
		t.Fatalf("expected secret provider failure code, got %v", err)
	}

	_, err = provider.Encrypt(ctx, nil)
	if !core.HasErrorCode(err, core.ErrorCodeBadInput) {
		t.Fatalf("expected bad input code for empty plaintext, got %v", err)
	}
}

func TestFailoverSecretProvider_FallbackTakesOver(t *testing.T) {
	ctx := context.Background()

	primary := newFlakySecretProvider(t, "primary key material", "primary", 1)
	fallback := newFlakySecretProvider(t, "fallback key material", "fallback", 1)

	var events []SecretProviderDiagnostic
	provider, err := NewFailoverSecretProvider(primary,
		WithFallbackSecretProvider(fallback),
		WithSecretProviderFailurePolicy(SecretProviderFailurePolicyFallback),
		WithSecretProviderDiagnostics(func(event SecretProviderDiagnostic) {
			events = append(events, event)
		}),
	)
	if err != nil {
		t.Fatalf("new failover provider: %v", err)
	}

	primary.fail(fmt.Errorf("kms unavailable"), fmt.Errorf("kms unavailable"))
	plaintext := []byte("payload")
	ciphertext, err := provider.Encrypt(ctx, plaintext)
	if err != nil {
		t.Fatalf("encrypt via fallback: %v", err)
	}
	decrypted, err := provider.Decrypt(ctx, ciphertext)
	if err != nil {
		t.Fatalf("decrypt via fallback: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected fallback round trip, got %q", decrypted)
	}

	keyID, version := provider.Metadata()
	if keyID != "fallback" || version != 1 {
		t.Fatalf("expected metadata to track the fallback key, got %s:%d", keyID, version)
	}

	var sawFailure, sawRecovery bool
	for _, event := range events {
		if event.Outcome == "primary_failed" {
			sawFailure = true
		}
		if event.Outcome == "fallback_succeeded" {
			sawRecovery = true
		}
	}
	if !sawFailure || !sawRecovery {
		t.Fatalf("expected failover diagnostics, got %+v", events)
	}
}

func TestFailoverSecretProvider_BothFailing(t *testing.T) {
	ctx := context.Background()

	primary := newFlakySecretProvider(t, "primary key material", "primary", 1)
	fallback := newFlakySecretProvider(t, "fallback key material", "fallback", 1)
	primary.fail(fmt.Errorf("primary down"), nil)
	fallback.fail(fmt.Errorf("fallback down"), nil)

	provider, err := NewFailoverSecretProvider(primary,
		WithFallbackSecretProvider(fallback),
		WithSecretProviderFailurePolicy(SecretProviderFailurePolicyFallback),
	)
	if err != nil {
		t.Fatalf("new failover provider: %v", err)
	}
	_, err = provider.Encrypt(ctx, []byte("payload"))
	if err == nil {
		t.Fatal("expected encrypt to fail when both providers are down")
	}
	if !core.HasErrorCode(err, ErrorCodeSecretProviderFailed) {
		t.Fatalf("expected secret provider failure code, got %v", err)
	}
}

type failoverEventLogger struct {
	mu    sync.Mutex
	warns []string
	infos []string
}

func (l *failoverEventLogger) Trace(string, ...any) {}
func (l *failoverEventLogger) Debug(string, ...any) {}
func (l *failoverEventLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, msg)
	l.mu.Unlock()
}
func (l *failoverEventLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
func (l *failoverEventLogger) Error(string, ...any)                   {}
func (l *failoverEventLogger) Fatal(string, ...any)                   {}
func (l *failoverEventLogger) WithContext(context.Context) glog.Logger { return l }

func TestFailoverSecretProvider_LogsFailoverEvents(t *testing.T) {
	ctx := context.Background()

	primary := newFlakySecretProvider(t, "primary key material", "primary", 1)
	fallback := newFlakySecretProvider(t, "fallback key material", "fallback", 1)
	primary.fail(fmt.Errorf("kms unavailable"), nil)

	logger := &failoverEventLogger{}
	provider, err := NewFailoverSecretProvider(primary,
		WithFallbackSecretProvider(fallback),
		WithSecretProviderFailurePolicy(SecretProviderFailurePolicyFallback),
		WithFailoverLogger(logger),
	)
	if err != nil {
		t.Fatalf("new failover provider: %v", err)
	}
	if _, err := provider.Encrypt(ctx, []byte("payload")); err != nil {
		t.Fatalf("encrypt via fallback: %v", err)
	}
	if len(logger.warns) != 1 {
		t.Fatalf("expected one warning for the primary failure, got %v", logger.warns)
	}
	if len(logger.infos) != 1 {
		t.Fatalf("expected one info for the fallback recovery, got %v", logger.infos)
	}
}

func TestNewFailoverSecretProvider_Validation(t *testing.T) {
	if _, err := NewFailoverSecretProvider(nil); err == nil {
		t.Fatal("expected nil primary to be rejected")
	}

	primary := newFlakySecretProvider(t, "primary key material", "primary", 1)
	_, err := NewFailoverSecretProvider(primary,
		WithSecretProviderFailurePolicy(SecretProviderFailurePolicyFallback),
	)
	if err == nil {
		t.Fatal("expected fallback policy without a fallback provider to be rejected")
	}
}

func TestNormalizeFailurePolicy(t *testing.T) {
	if got := normalizeFailurePolicy(" Fallback_Allowed "); got != SecretProviderFailurePolicyFallback {
		t.Fatalf("expected fallback policy, got %s", got)
	}
	if got := normalizeFailurePolicy("anything else"); got != SecretProviderFailurePolicyStrict {
		t.Fatalf("expected strict default, got %s", got)
	}
}
