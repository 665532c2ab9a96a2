package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-integrations/core"
)

const defaultHealthAuditRetention = 100

// HealthAuditStore is a durable probe-result log for hosts that want health
// history to survive restarts. Retention is enforced per provider on append.
type HealthAuditStore struct {
	db        *bun.DB
	repo      repository.Repository[*healthAuditRecord]
	retention int
}

func NewHealthAuditStore(db *bun.DB, retention int) (*HealthAuditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if retention <= 0 {
		retention = defaultHealthAuditRetention
	}
	repo := repository.NewRepository[*healthAuditRecord](db, healthAuditHandlers())
	return &HealthAuditStore{db: db, repo: repo, retention: retention}, nil
}

func (s *HealthAuditStore) Append(ctx context.Context, result core.ProbeResult) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: health audit store is not configured")
	}
	provider := strings.TrimSpace(strings.ToLower(result.Provider))
	if provider == "" {
		return fmt.Errorf("sqlstore: provider is required")
	}
	checkedAt := result.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &healthAuditRecord{
			ID:        uuid.NewString(),
			Provider:  provider,
			Success:   result.Success,
			LatencyMS: result.Latency.Milliseconds(),
			Error:     result.Error,
			CheckedAt: checkedAt.UTC(),
			CreatedAt: time.Now().UTC(),
		}
		if _, err := s.repo.CreateTx(ctx, tx, record); err != nil {
			return err
		}

		// Trim rows beyond the retention window, oldest first.
		_, err := tx.NewDelete().
			Model((*healthAuditRecord)(nil)).
			Where("provider = ?", provider).
			Where("id NOT IN (?)", tx.NewSelect().
				Model((*healthAuditRecord)(nil)).
				Column("id").
				Where("provider = ?", provider).
				OrderExpr("checked_at DESC").
				Limit(s.retention),
			).
			Exec(ctx)
		return err
	})
}

func (s *HealthAuditStore) ListRecent(ctx context.Context, provider string, limit int) ([]core.ProbeResult, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: health audit store is not configured")
	}
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return nil, fmt.Errorf("sqlstore: provider is required")
	}
	if limit <= 0 || limit > s.retention {
		limit = s.retention
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider", "=", provider),
		repository.OrderBy("checked_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	results := make([]core.ProbeResult, 0, len(records))
	for _, record := range records {
		results = append(results, record.toProbeResult())
	}
	return results, nil
}
