package repo

import (
	"context"
	"time"

	"mosaic/internal/infra"
	"mosaic/internal/sqlinline"
)

// WebhookEventRepositoryPG implements domain.WebhookEventRepository.
type WebhookEventRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewWebhookEventRepository(sql infra.SQLExecutor) *WebhookEventRepositoryPG {
	return &WebhookEventRepositoryPG{sql: sql}
}

func (r *WebhookEventRepositoryPG) MarkProcessed(ctx context.Context, id, eventType string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QInsertWebhookEvent, id, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Forget removes an event record so a failed delivery can be retried.
func (r *WebhookEventRepositoryPG) Forget(ctx context.Context, id string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeleteWebhookEvent, id)
	return err
}

func (r *WebhookEventRepositoryPG) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QPruneWebhookEventsBefore, before.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
