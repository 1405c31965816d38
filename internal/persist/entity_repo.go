package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"github.com/jackc/pgx/v5"
)

// EntityRepo stores entity snapshots, one row per entity with its tags as JSONB.
type EntityRepo struct {
	db *DB
}

func NewEntityRepo(db *DB) *EntityRepo {
	return &EntityRepo{db: db}
}

// LoadAll returns every stored entity sorted by id.
func (r *EntityRepo) LoadAll(ctx context.Context) ([]*tag.Entity, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, tags FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	defer rows.Close()

	var result []*tag.Entity
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e, err := decodeTags(id, raw)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// SaveAll makes the table match entities exactly: upserts every snapshot and
// deletes rows whose id is not in the set, in one transaction.
func (r *EntityRepo) SaveAll(ctx context.Context, entities []*tag.Entity) error {
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		ids := make([]string, 0, len(entities))
		for _, e := range entities {
			raw, err := encodeTags(e)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO entities (id, tags, updated_at) VALUES ($1, $2, now())
				 ON CONFLICT (id) DO UPDATE SET tags = EXCLUDED.tags, updated_at = now()
				 WHERE entities.tags IS DISTINCT FROM EXCLUDED.tags`,
				e.ID(), raw,
			); err != nil {
				return fmt.Errorf("upsert entity %s: %w", e.ID(), err)
			}
			ids = append(ids, e.ID())
		}
		if _, err := tx.Exec(ctx, `DELETE FROM entities WHERE NOT (id = ANY($1))`, ids); err != nil {
			return fmt.Errorf("delete stale entities: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save entities: %w", err)
	}
	return nil
}

func encodeTags(e *tag.Entity) ([]byte, error) {
	raw, err := json.Marshal(e.Raw())
	if err != nil {
		return nil, fmt.Errorf("encode entity %s: %w", e.ID(), err)
	}
	return raw, nil
}

func decodeTags(id string, raw []byte) (*tag.Entity, error) {
	var tags map[string]any
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, fmt.Errorf("decode entity %s: %w", id, err)
	}
	return tag.FromMap(id, tags), nil
}
