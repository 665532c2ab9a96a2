package sqlstore

import (
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:integration_credentials,alias:ic"`

	ID               string     `bun:"id,pk"`
	Provider         string     `bun:"provider,notnull"`
	EncryptedPayload []byte     `bun:"encrypted_payload,notnull"`
	PayloadFormat    string     `bun:"payload_format,notnull"`
	PayloadVersion   int        `bun:"payload_version,notnull"`
	State            string     `bun:"state,notnull"`
	ExpiresAt        *time.Time `bun:"expires_at,nullzero"`
	LastError        string     `bun:"last_error"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *credentialRecord) toStored() core.StoredCredential {
	if r == nil {
		return core.StoredCredential{}
	}
	payload := make([]byte, len(r.EncryptedPayload))
	copy(payload, r.EncryptedPayload)
	var expiresAt *time.Time
	if r.ExpiresAt != nil {
		value := r.ExpiresAt.UTC()
		expiresAt = &value
	}
	return core.StoredCredential{
		Provider:         r.Provider,
		EncryptedPayload: payload,
		PayloadFormat:    r.PayloadFormat,
		PayloadVersion:   r.PayloadVersion,
		State:            core.CredentialState(r.State),
		ExpiresAt:        expiresAt,
		LastError:        r.LastError,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

type healthAuditRecord struct {
	bun.BaseModel `bun:"table:integration_health_audit,alias:iha"`

	ID        string    `bun:"id,pk"`
	Provider  string    `bun:"provider,notnull"`
	Success   bool      `bun:"success,notnull"`
	LatencyMS int64     `bun:"latency_ms,notnull"`
	Error     string    `bun:"error"`
	CheckedAt time.Time `bun:"checked_at,nullzero,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *healthAuditRecord) toProbeResult() core.ProbeResult {
	if r == nil {
		return core.ProbeResult{}
	}
	return core.ProbeResult{
		Provider:  r.Provider,
		Success:   r.Success,
		Latency:   time.Duration(r.LatencyMS) * time.Millisecond,
		Error:     r.Error,
		CheckedAt: r.CheckedAt.UTC(),
	}
}
