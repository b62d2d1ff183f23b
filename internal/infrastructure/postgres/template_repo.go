package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TemplateRepository struct {
	pool *pgxpool.Pool
}

func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

func (r *TemplateRepository) Save(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	actions, err := json.Marshal(t.Actions)
	if err != nil {
		return nil, fmt.Errorf("marshal actions: %w", err)
	}

	query := `
		INSERT INTO journey_templates (name, description, actions)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, actions, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query, t.Name, t.Description, actions)
	created, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return created, nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*domain.Template, error) {
	query := `
		SELECT id, name, description, actions, created_at, updated_at
		FROM journey_templates
		WHERE id = $1`

	return scanTemplate(r.pool.QueryRow(ctx, query, id))
}

func (r *TemplateRepository) List(ctx context.Context, limit int) ([]*domain.Template, error) {
	query := `
		SELECT id, name, description, actions, created_at, updated_at
		FROM journey_templates
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	tpls := []*domain.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		tpls = append(tpls, t)
	}
	return tpls, rows.Err()
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var (
		t       domain.Template
		actions []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &actions, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}
	if err := json.Unmarshal(actions, &t.Actions); err != nil {
		return nil, fmt.Errorf("decode actions of template %s: %w", t.ID, err)
	}
	return &t, nil
}
