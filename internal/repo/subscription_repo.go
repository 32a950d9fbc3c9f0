package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scroungers/courier/internal/domain"
)

// SubscriptionRepo — репозиторий для работы с подписками.
type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo создаёт новый SubscriptionRepo.
func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// Create создаёт новую подписку.
func (r *SubscriptionRepo) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, account_id, url, secret, events, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		sub.ID,
		sub.AccountID,
		sub.URL,
		sub.Secret,
		eventFilter(sub.Events),
		sub.Active,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// GetByID возвращает подписку по ID.
func (r *SubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	query := `
		SELECT id, account_id, url, secret, events, active, created_at, updated_at
		FROM subscriptions
		WHERE id = $1
	`
	return r.scanSubscription(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список подписок с фильтрацией.
func (r *SubscriptionRepo) List(ctx context.Context, filter SubscriptionFilter) ([]domain.Subscription, error) {
	query := `
		SELECT id, account_id, url, secret, events, active, created_at, updated_at
		FROM subscriptions
		WHERE ($1::uuid IS NULL OR account_id = $1)
		  AND ($2::boolean IS NULL OR active = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.AccountID),
		filter.Active,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	return r.collectSubscriptions(rows)
}

// ListForEvent возвращает активные подписки, фильтр которых содержит
// данный тип события. Это выборка fan-out'а Dispatcher'а.
func (r *SubscriptionRepo) ListForEvent(ctx context.Context, eventType domain.EventType, accountID *uuid.UUID) ([]domain.Subscription, error) {
	query := `
		SELECT id, account_id, url, secret, events, active, created_at, updated_at
		FROM subscriptions
		WHERE active = true
		  AND $1 = ANY(events)
		  AND ($2::uuid IS NULL OR account_id = $2)
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, string(eventType), nullUUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for event: %w", err)
	}
	defer rows.Close()

	return r.collectSubscriptions(rows)
}

// Update обновляет подписку.
func (r *SubscriptionRepo) Update(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET url = $2, secret = $3, events = $4, active = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		sub.ID,
		sub.URL,
		sub.Secret,
		eventFilter(sub.Events),
		sub.Active,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет подписку.
func (r *SubscriptionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// SubscriptionFilter — параметры фильтрации подписок.
type SubscriptionFilter struct {
	AccountID *uuid.UUID
	Active    *bool
	Limit     int
	Offset    int
}

// scanSubscription сканирует одну строку в Subscription.
func (r *SubscriptionRepo) scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var events []string

	err := row.Scan(
		&sub.ID,
		&sub.AccountID,
		&sub.URL,
		&sub.Secret,
		&events,
		&sub.Active,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	sub.Events = make([]domain.EventType, len(events))
	for i, e := range events {
		sub.Events[i] = domain.EventType(e)
	}

	return &sub, nil
}

// collectSubscriptions сканирует все строки результата.
func (r *SubscriptionRepo) collectSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	for rows.Next() {
		sub, err := r.scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// eventFilter конвертирует фильтр событий в text[] для БД.
func eventFilter(events []domain.EventType) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
