package repositories

import (
	"context"
	"fmt"

	"github.com/dmforge/encounter-engine/pkg/database"
	"github.com/dmforge/encounter-engine/pkg/models"
)

// MonsterRepository resolves monster references against the reference
// data table. Monster definitions are read-only through this API.
type MonsterRepository interface {
	// ResolveRefs returns the subset of refs that do not exist.
	ResolveRefs(ctx context.Context, refs []string) ([]string, error)
	FindAll(ctx context.Context) ([]*models.Monster, error)
}

// monsterRepository implements MonsterRepository using PostgreSQL.
type monsterRepository struct {
	db *database.DB
}

// NewMonsterRepository creates a new monster repository.
func NewMonsterRepository(db *database.DB) MonsterRepository {
	return &monsterRepository{db: db}
}

// ResolveRefs checks each distinct reference against the monsters table
// and returns the ones that could not be resolved, in input order.
func (r *monsterRepository) ResolveRefs(ctx context.Context, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	distinct := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if !seen[ref] {
			seen[ref] = true
			distinct = append(distinct, ref)
		}
	}

	rows, err := r.db.Query(ctx,
		`SELECT ref FROM monsters WHERE ref = ANY($1)`, distinct)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve monster refs: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(distinct))
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan monster ref: %w", err)
		}
		found[ref] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monster refs: %w", err)
	}

	var missing []string
	for _, ref := range distinct {
		if !found[ref] {
			missing = append(missing, ref)
		}
	}
	return missing, nil
}

// FindAll retrieves the full monster reference list.
func (r *monsterRepository) FindAll(ctx context.Context) ([]*models.Monster, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ref, name, challenge FROM monsters ORDER BY ref`)
	if err != nil {
		return nil, fmt.Errorf("failed to list monsters: %w", err)
	}
	defer rows.Close()

	var monsters []*models.Monster
	for rows.Next() {
		var m models.Monster
		if err := rows.Scan(&m.Ref, &m.Name, &m.Challenge); err != nil {
			return nil, fmt.Errorf("failed to scan monster: %w", err)
		}
		monsters = append(monsters, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monsters: %w", err)
	}

	return monsters, nil
}

// Ensure monsterRepository implements MonsterRepository at compile time.
var _ MonsterRepository = (*monsterRepository)(nil)
