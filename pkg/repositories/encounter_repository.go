// Package repositories contains the PostgreSQL data-access layer.
// Repositories own persistence and constraint translation only;
// business rules live in pkg/services.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmforge/encounter-engine/pkg/apperrors"
	"github.com/dmforge/encounter-engine/pkg/database"
	"github.com/dmforge/encounter-engine/pkg/models"
)

// PostgreSQL error codes translated at this boundary.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// EncounterRepository defines the interface for encounter data access.
// Implementations must guarantee that ReplaceRoster is atomic: a
// concurrent reader observes either the old roster or the new one in
// full, never a mix.
type EncounterRepository interface {
	Create(ctx context.Context, enc *models.Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Encounter, error)
	ListByOwner(ctx context.Context, owner string) (map[uuid.UUID]*models.Encounter, error)
	ReplaceRoster(ctx context.Context, id uuid.UUID, refs []string) (*models.Encounter, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// encounterRepository implements EncounterRepository using PostgreSQL.
type encounterRepository struct {
	db *database.DB
}

// NewEncounterRepository creates a new encounter repository.
func NewEncounterRepository(db *database.DB) EncounterRepository {
	return &encounterRepository{db: db}
}

// Create inserts a new encounter row with a fresh identifier. The owner
// must already exist in the user directory; a foreign key failure on it
// surfaces as ErrNotFound.
func (r *encounterRepository) Create(ctx context.Context, enc *models.Encounter) error {
	if enc.ID == uuid.Nil {
		enc.ID = uuid.New()
	}
	now := time.Now()
	enc.CreatedAt = now
	enc.UpdatedAt = now

	query := `
		INSERT INTO encounters (id, owner_username, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		enc.ID,
		enc.OwnerUsername,
		enc.Name,
		enc.Description,
		enc.CreatedAt,
		enc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create encounter: %w", translateConstraint(err))
	}

	if enc.Roster == nil {
		enc.Roster = []models.EncounterMonster{}
	}
	return nil
}

// GetByID retrieves an encounter together with its monster roster.
func (r *encounterRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Encounter, error) {
	enc, err := scanEncounter(ctx, r.db, id)
	if err != nil {
		return nil, err
	}

	roster, err := r.loadRoster(ctx, id)
	if err != nil {
		return nil, err
	}
	enc.Roster = roster

	return enc, nil
}

// ListByOwner returns all encounters owned by the given user, each with
// its current roster, keyed by encounter ID. A user with no encounters
// yields an empty map, not an error.
func (r *encounterRepository) ListByOwner(ctx context.Context, owner string) (map[uuid.UUID]*models.Encounter, error) {
	query := `
		SELECT id, owner_username, name, description, created_at, updated_at
		FROM encounters
		WHERE owner_username = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list encounters: %w", err)
	}
	defer rows.Close()

	encounters := make(map[uuid.UUID]*models.Encounter)
	for rows.Next() {
		var enc models.Encounter
		err := rows.Scan(
			&enc.ID,
			&enc.OwnerUsername,
			&enc.Name,
			&enc.Description,
			&enc.CreatedAt,
			&enc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan encounter: %w", err)
		}
		enc.Roster = []models.EncounterMonster{}
		encounters[enc.ID] = &enc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating encounters: %w", err)
	}

	if len(encounters) == 0 {
		return encounters, nil
	}

	rosterQuery := `
		SELECT em.encounter_id, em.monster_ref, em.quantity
		FROM encounter_monsters em
		JOIN encounters e ON e.id = em.encounter_id
		WHERE e.owner_username = $1
		ORDER BY em.monster_ref`

	rosterRows, err := r.db.Query(ctx, rosterQuery, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list rosters: %w", err)
	}
	defer rosterRows.Close()

	for rosterRows.Next() {
		var encounterID uuid.UUID
		var m models.EncounterMonster
		if err := rosterRows.Scan(&encounterID, &m.MonsterRef, &m.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", err)
		}
		if enc, ok := encounters[encounterID]; ok {
			enc.Roster = append(enc.Roster, m)
		}
	}
	if err := rosterRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rosters: %w", err)
	}

	return encounters, nil
}

// ReplaceRoster swaps the full roster of an encounter in one
// transaction. The encounter row is locked first, so a replace racing a
// delete or another replace serializes instead of interleaving.
func (r *encounterRepository) ReplaceRoster(ctx context.Context, id uuid.UUID, refs []string) (*models.Encounter, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var enc models.Encounter
	lockQuery := `
		SELECT id, owner_username, name, description, created_at, updated_at
		FROM encounters
		WHERE id = $1
		FOR UPDATE`
	err = tx.QueryRow(ctx, lockQuery, id).Scan(
		&enc.ID,
		&enc.OwnerUsername,
		&enc.Name,
		&enc.Description,
		&enc.CreatedAt,
		&enc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("encounter %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock encounter: %w", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM encounter_monsters WHERE encounter_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to clear roster: %w", err)
	}

	// Empty roster serializes as an empty list, never null.
	roster := models.AggregateRoster(refs)
	if roster == nil {
		roster = []models.EncounterMonster{}
	}
	if len(roster) > 0 {
		batch := &pgx.Batch{}
		for _, m := range roster {
			batch.Queue(
				`INSERT INTO encounter_monsters (encounter_id, monster_ref, quantity) VALUES ($1, $2, $3)`,
				id, m.MonsterRef, m.Quantity,
			)
		}
		results := tx.SendBatch(ctx, batch)
		for range roster {
			if _, err = results.Exec(); err != nil {
				_ = results.Close()
				return nil, fmt.Errorf("failed to insert roster row: %w", translateConstraint(err))
			}
		}
		if err = results.Close(); err != nil {
			return nil, fmt.Errorf("failed to close roster batch: %w", err)
		}
	}

	enc.UpdatedAt = time.Now()
	if _, err = tx.Exec(ctx, `UPDATE encounters SET updated_at = $1 WHERE id = $2`, enc.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("failed to touch encounter: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit roster replace: %w", err)
	}

	enc.Roster = roster
	return &enc, nil
}

// Delete removes an encounter and its roster rows. The encounter row is
// locked first, the same lock ReplaceRoster takes, so a delete racing a
// replace serializes on the row instead of interleaving. Roster rows go
// next inside the same transaction; the ON DELETE CASCADE constraint is
// a backstop, not the mechanism.
func (r *encounterRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM encounters WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("encounter %s: %w", id, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to lock encounter: %w", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM encounter_monsters WHERE encounter_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete roster: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM encounters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete encounter: %w", err)
	}
	if result.RowsAffected() == 0 {
		err = fmt.Errorf("encounter %s: %w", id, apperrors.ErrNotFound)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit encounter delete: %w", err)
	}

	return nil
}

// scanEncounter reads a single encounter row without its roster.
func scanEncounter(ctx context.Context, db *database.DB, id uuid.UUID) (*models.Encounter, error) {
	query := `
		SELECT id, owner_username, name, description, created_at, updated_at
		FROM encounters
		WHERE id = $1`

	var enc models.Encounter
	err := db.QueryRow(ctx, query, id).Scan(
		&enc.ID,
		&enc.OwnerUsername,
		&enc.Name,
		&enc.Description,
		&enc.CreatedAt,
		&enc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("encounter %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get encounter: %w", err)
	}
	return &enc, nil
}

func (r *encounterRepository) loadRoster(ctx context.Context, id uuid.UUID) ([]models.EncounterMonster, error) {
	query := `
		SELECT monster_ref, quantity
		FROM encounter_monsters
		WHERE encounter_id = $1
		ORDER BY monster_ref`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	defer rows.Close()

	roster := []models.EncounterMonster{}
	for rows.Next() {
		var m models.EncounterMonster
		if err := rows.Scan(&m.MonsterRef, &m.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", err)
		}
		roster = append(roster, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roster: %w", err)
	}

	return roster, nil
}

// translateConstraint maps PostgreSQL constraint violations onto the
// shared error taxonomy.
func translateConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgForeignKeyViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperrors.ErrNotFound)
	case pgUniqueViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperrors.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", pgErr.Message, apperrors.ErrIntegrity)
	}
}

// Ensure encounterRepository implements EncounterRepository at compile time.
var _ EncounterRepository = (*encounterRepository)(nil)
