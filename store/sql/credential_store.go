package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-integrations/core"
)

// CredentialStore persists one encrypted snapshot row per provider.
type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
}

func (s *CredentialStore) SaveSnapshot(ctx context.Context, in core.SaveCredentialInput) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	provider := strings.TrimSpace(strings.ToLower(in.Provider))
	if provider == "" {
		return fmt.Errorf("sqlstore: provider is required")
	}
	if len(in.EncryptedPayload) == 0 {
		return fmt.Errorf("sqlstore: encrypted payload is required")
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*credentialRecord)(nil)).
			Set("encrypted_payload = ?", in.EncryptedPayload).
			Set("payload_format = ?", in.PayloadFormat).
			Set("payload_version = ?", in.PayloadVersion).
			Set("state = ?", string(in.State)).
			Set("expires_at = ?", in.ExpiresAt).
			Set("last_error = ?", in.LastError).
			Set("updated_at = ?", now).
			Where("provider = ?", provider).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected > 0 {
			return nil
		}

		record := &credentialRecord{
			ID:               uuid.NewString(),
			Provider:         provider,
			EncryptedPayload: in.EncryptedPayload,
			PayloadFormat:    in.PayloadFormat,
			PayloadVersion:   in.PayloadVersion,
			State:            string(in.State),
			ExpiresAt:        in.ExpiresAt,
			LastError:        in.LastError,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		_, err = s.repo.CreateTx(ctx, tx, record)
		return err
	})
}

func (s *CredentialStore) GetByProvider(ctx context.Context, provider string) (core.StoredCredential, error) {
	if s == nil || s.repo == nil {
		return core.StoredCredential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	provider = strings.TrimSpace(strings.ToLower(provider))
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider", "=", provider),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.StoredCredential{}, fmt.Errorf("sqlstore: credential not found for provider %q", provider)
		}
		return core.StoredCredential{}, err
	}
	if len(records) == 0 {
		return core.StoredCredential{}, fmt.Errorf("sqlstore: credential not found for provider %q", provider)
	}
	return records[0].toStored(), nil
}

func (s *CredentialStore) DeleteByProvider(ctx context.Context, provider string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return fmt.Errorf("sqlstore: provider is required")
	}
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("provider = ?", provider).
		Exec(ctx)
	return err
}

func (s *CredentialStore) LoadAll(ctx context.Context) ([]core.StoredCredential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("provider ASC"),
	)
	if err != nil {
		return nil, err
	}
	stored := make([]core.StoredCredential, 0, len(records))
	for _, record := range records {
		stored = append(stored, record.toStored())
	}
	return stored, nil
}

var _ core.CredentialStore = (*CredentialStore)(nil)
