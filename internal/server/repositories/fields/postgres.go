// Package fields stores file-field references in Postgres. It is the record
// side of the file-field saga: single fields are text columns where '' means
// none, list fields are jsonb arrays. Writes are compare-and-swap on the value
// the caller last read.
package fields

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
)

// Field names understood by the repository.
const (
	ProfileImage   = "profile_image"
	CompanyLogo    = "company_logo"
	BusinessImages = "business_images"
	IndustryImage  = "industry_image"
)

var ErrUnknownField = errors.New("unknown file field")

type column struct {
	table string
	name  string
	list  bool
	// touch bumps updated_at on write.
	touch bool
}

var columns = map[string]column{
	ProfileImage:   {table: "users", name: "profile_image", touch: true},
	CompanyLogo:    {table: "users", name: "company_logo", touch: true},
	BusinessImages: {table: "users", name: "business_images", list: true, touch: true},
	IndustryImage:  {table: "industries", name: "image"},
}

type PostgresRepository struct {
	db dbx.DBTX
}

var _ saga.RecordStore = (*PostgresRepository)(nil)

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func lookup(f saga.Field) (column, error) {
	c, ok := columns[f.Name]
	if !ok {
		return column{}, fmt.Errorf("%w %q", ErrUnknownField, f.Name)
	}
	if c.list != (f.Cardinality == saga.List) {
		return column{}, fmt.Errorf("field %q: cardinality mismatch", f.Name)
	}
	return c, nil
}

func (r *PostgresRepository) GetField(ctx context.Context, recordID string, field saga.Field) ([]string, error) {
	c, err := lookup(field)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(recordID); err != nil {
		return nil, common.ErrorNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, c.name, c.table)

	var raw []byte
	if err := r.db.QueryRowContext(ctx, query, recordID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if !c.list {
		if len(raw) == 0 {
			return nil, nil
		}
		return []string{string(raw)}, nil
	}

	var keys []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &keys); err != nil {
			return nil, fmt.Errorf("db error: %s: %w", c.name, err)
		}
	}
	return keys, nil
}

func (r *PostgresRepository) SetField(ctx context.Context, recordID string, field saga.Field, expected, next []string) error {
	c, err := lookup(field)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(recordID); err != nil {
		return common.ErrorNotFound
	}

	want, err := c.encode(expected)
	if err != nil {
		return err
	}
	val, err := c.encode(next)
	if err != nil {
		return err
	}

	cast, touch := "", ""
	if c.list {
		cast = "::jsonb"
	}
	if c.touch {
		touch = ", updated_at = now()"
	}
	query := fmt.Sprintf(`UPDATE %s SET %s = $1%s%s WHERE id = $2 AND %s = $3%s`,
		c.table, c.name, cast, touch, c.name, cast)

	res, err := r.db.ExecContext(ctx, query, val, recordID, want)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	switch n {
	case 1:
		return nil
	case 0:
		return r.missOrConflict(ctx, c, recordID)
	default:
		return fmt.Errorf("db error: %d rows updated for id %s", n, recordID)
	}
}

// missOrConflict tells a vanished record from a field that moved on.
func (r *PostgresRepository) missOrConflict(ctx context.Context, c column, recordID string) error {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, c.table)

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, recordID).Scan(&exists); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return common.ErrorNotFound
	}
	return common.ErrVersionConflict
}

func (c column) encode(keys []string) (string, error) {
	if c.list {
		if keys == nil {
			keys = []string{}
		}
		b, err := json.Marshal(keys)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	switch len(keys) {
	case 0:
		return "", nil
	case 1:
		return keys[0], nil
	default:
		return "", fmt.Errorf("field %s holds one key, got %d", c.name, len(keys))
	}
}
