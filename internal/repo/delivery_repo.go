package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scroungers/courier/internal/domain"
)

// DeliveryRepo — репозиторий для работы с записями доставок.
type DeliveryRepo struct {
	pool *pgxpool.Pool
}

// NewDeliveryRepo создаёт новый DeliveryRepo.
func NewDeliveryRepo(pool *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

const deliveryColumns = `id, subscription_id, event_type, payload, status, attempt_count,
	       status_code, response_body, error_message, next_retry_at, delivered_at,
	       created_at, updated_at`

// Create создаёт новую запись доставки (status=pending).
func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	query := `
		INSERT INTO deliveries (id, subscription_id, event_type, payload, status, attempt_count,
		                        status_code, response_body, error_message, next_retry_at,
		                        delivered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		d.ID,
		d.SubscriptionID,
		string(d.EventType),
		[]byte(d.Payload),
		string(d.Status),
		d.AttemptCount,
		d.StatusCode,
		nullString(d.ResponseBody),
		nullString(d.ErrorMessage),
		d.NextRetryAt,
		d.DeliveredAt,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// GetByID возвращает запись доставки по ID.
func (r *DeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`
	return r.scanDelivery(r.pool.QueryRow(ctx, query, id))
}

// Update обновляет запись доставки после попытки.
func (r *DeliveryRepo) Update(ctx context.Context, d *domain.Delivery) error {
	query := `
		UPDATE deliveries
		SET status = $2, attempt_count = $3, status_code = $4, response_body = $5,
		    error_message = $6, next_retry_at = $7, delivered_at = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		d.ID,
		string(d.Status),
		d.AttemptCount,
		d.StatusCode,
		nullString(d.ResponseBody),
		nullString(d.ErrorMessage),
		d.NextRetryAt,
		d.DeliveredAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List возвращает записи доставок с фильтрацией.
func (r *DeliveryRepo) List(ctx context.Context, filter DeliveryFilter) ([]domain.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE ($1::uuid IS NULL OR subscription_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR event_type = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.SubscriptionID),
		nullString(string(filter.Status)),
		nullString(string(filter.EventType)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	return r.collectDeliveries(rows)
}

// ClaimDue атомарно забирает порцию failed-доставок, у которых подошло
// время retry и остались попытки.
//
// FOR UPDATE SKIP LOCKED плюс сдвиг next_retry_at на lease вперёд
// гарантируют, что перекрывающиеся sweep'ы (в том числе с нескольких
// экземпляров retrier'а) не заберут одну запись дважды: запись либо
// заблокирована конкурентом, либо уже арендована и не проходит по
// next_retry_at <= now.
func (r *DeliveryRepo) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.Delivery, error) {
	query := `
		WITH due AS (
			SELECT id
			FROM deliveries
			WHERE status = 'failed'
			  AND attempt_count < $2
			  AND next_retry_at IS NOT NULL
			  AND next_retry_at <= $1
			ORDER BY next_retry_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE deliveries d
		SET next_retry_at = $1 + $4, updated_at = $1
		FROM due
		WHERE d.id = due.id
		RETURNING ` + qualifyColumns("d") + `
	`
	rows, err := r.pool.Query(ctx, query, now, domain.MaxRetries, limit, lease)
	if err != nil {
		return nil, fmt.Errorf("claim due deliveries: %w", err)
	}
	defer rows.Close()

	deliveries, err := r.collectDeliveries(rows)
	if err != nil {
		return nil, err
	}

	// Возвращаем в порядке due-времени: RETURNING порядок не гарантирует
	sortByNextRetry(deliveries)
	return deliveries, nil
}

// ListStalledPending возвращает доставки, зависшие в pending дольше
// порога: диспетчер упал между созданием записи и фиксацией исхода.
func (r *DeliveryRepo) ListStalledPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE status = 'pending'
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stalled deliveries: %w", err)
	}
	defer rows.Close()

	return r.collectDeliveries(rows)
}

// --- Helpers ---

// DeliveryFilter — параметры фильтрации доставок.
type DeliveryFilter struct {
	SubscriptionID *uuid.UUID
	Status         domain.DeliveryStatus
	EventType      domain.EventType
	Limit          int
	Offset         int
}

// scanDelivery сканирует одну строку в Delivery.
func (r *DeliveryRepo) scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	var payload []byte
	var responseBody *string
	var errorMessage *string

	err := row.Scan(
		&d.ID,
		&d.SubscriptionID,
		&d.EventType,
		&payload,
		&d.Status,
		&d.AttemptCount,
		&d.StatusCode,
		&responseBody,
		&errorMessage,
		&d.NextRetryAt,
		&d.DeliveredAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan delivery: %w", err)
	}

	d.Payload = payload
	if responseBody != nil {
		d.ResponseBody = *responseBody
	}
	if errorMessage != nil {
		d.ErrorMessage = *errorMessage
	}

	return &d, nil
}

// collectDeliveries сканирует все строки результата.
func (r *DeliveryRepo) collectDeliveries(rows pgx.Rows) ([]domain.Delivery, error) {
	var deliveries []domain.Delivery
	for rows.Next() {
		d, err := r.scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, rows.Err()
}

// qualifyColumns добавляет алиас таблицы к списку колонок для RETURNING.
func qualifyColumns(alias string) string {
	return alias + `.id, ` + alias + `.subscription_id, ` + alias + `.event_type, ` +
		alias + `.payload, ` + alias + `.status, ` + alias + `.attempt_count, ` +
		alias + `.status_code, ` + alias + `.response_body, ` + alias + `.error_message, ` +
		alias + `.next_retry_at, ` + alias + `.delivered_at, ` + alias + `.created_at, ` +
		alias + `.updated_at`
}

// sortByNextRetry сортирует доставки по возрастанию next_retry_at.
func sortByNextRetry(deliveries []domain.Delivery) {
	sort.Slice(deliveries, func(i, j int) bool {
		a, b := deliveries[i].NextRetryAt, deliveries[j].NextRetryAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.Before(*b)
	})
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
