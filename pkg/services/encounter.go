// Package services composes repository operations into use cases and
// enforces ownership. Services never format transport responses; they
// return domain values and sentinel errors.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmforge/encounter-engine/pkg/apperrors"
	"github.com/dmforge/encounter-engine/pkg/models"
	"github.com/dmforge/encounter-engine/pkg/repositories"
)

// EncounterService defines the interface for encounter operations.
type EncounterService interface {
	// CreateWithMonsters creates an encounter and, when monsterRefs is
	// non-nil and non-empty, attaches the roster. A nil monsterRefs
	// skips the roster step entirely; an empty non-nil slice is an
	// explicit empty roster.
	CreateWithMonsters(ctx context.Context, owner, name, description string, monsterRefs []string) (*models.Encounter, error)
	// GetOwned fetches an encounter and asserts the actor owns it.
	GetOwned(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Encounter, error)
	ListOwned(ctx context.Context, owner string) (map[uuid.UUID]*models.Encounter, error)
	// SetRoster replaces the full roster. An empty slice clears it.
	SetRoster(ctx context.Context, id uuid.UUID, actor models.Actor, monsterRefs []string) (*models.Encounter, error)
	// DeleteOwned removes an encounter and its roster, returning the
	// deleted identifier for confirmation.
	DeleteOwned(ctx context.Context, id uuid.UUID, actor models.Actor) (uuid.UUID, error)
}

// encounterService implements EncounterService.
type encounterService struct {
	encounterRepo repositories.EncounterRepository
	userRepo      repositories.UserRepository
	monsterRepo   repositories.MonsterRepository
	logger        *zap.Logger
}

// NewEncounterService creates a new encounter service with dependencies.
func NewEncounterService(
	encounterRepo repositories.EncounterRepository,
	userRepo repositories.UserRepository,
	monsterRepo repositories.MonsterRepository,
	logger *zap.Logger,
) EncounterService {
	return &encounterService{
		encounterRepo: encounterRepo,
		userRepo:      userRepo,
		monsterRepo:   monsterRepo,
		logger:        logger,
	}
}

// CreateWithMonsters creates the encounter row, then attaches the
// roster in a second store call. The two calls are not one transaction;
// a crash between them leaves an encounter with an empty roster, which
// a later SetRoster repairs.
func (s *encounterService) CreateWithMonsters(ctx context.Context, owner, name, description string, monsterRefs []string) (*models.Encounter, error) {
	exists, err := s.userRepo.Exists(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("owner %q: %w", owner, apperrors.ErrNotFound)
	}

	if err := s.validateRefs(ctx, monsterRefs); err != nil {
		return nil, err
	}

	enc := &models.Encounter{
		OwnerUsername: owner,
		Name:          name,
		Description:   description,
	}
	if err := s.encounterRepo.Create(ctx, enc); err != nil {
		return nil, err
	}

	if len(monsterRefs) > 0 {
		updated, err := s.encounterRepo.ReplaceRoster(ctx, enc.ID, monsterRefs)
		if err != nil {
			s.logger.Error("Encounter created but roster attach failed",
				zap.String("encounter_id", enc.ID.String()),
				zap.String("owner", owner),
				zap.Error(err))
			return nil, err
		}
		return updated, nil
	}

	return enc, nil
}

// GetOwned fetches an encounter and re-validates resource-level
// ownership. The API boundary only checks the path username; the
// encounter id may belong to someone else entirely.
func (s *encounterService) GetOwned(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Encounter, error) {
	enc, err := s.encounterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := assertOwner(enc, actor); err != nil {
		return nil, err
	}
	return enc, nil
}

// ListOwned returns all encounters owned by the given user.
func (s *encounterService) ListOwned(ctx context.Context, owner string) (map[uuid.UUID]*models.Encounter, error) {
	return s.encounterRepo.ListByOwner(ctx, owner)
}

// SetRoster replaces the encounter's roster after validating every
// monster reference. An empty slice clears the roster.
func (s *encounterService) SetRoster(ctx context.Context, id uuid.UUID, actor models.Actor, monsterRefs []string) (*models.Encounter, error) {
	enc, err := s.encounterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := assertOwner(enc, actor); err != nil {
		return nil, err
	}

	if err := s.validateRefs(ctx, monsterRefs); err != nil {
		return nil, err
	}

	return s.encounterRepo.ReplaceRoster(ctx, id, monsterRefs)
}

// DeleteOwned removes an encounter after the ownership check.
func (s *encounterService) DeleteOwned(ctx context.Context, id uuid.UUID, actor models.Actor) (uuid.UUID, error) {
	enc, err := s.encounterRepo.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if err := assertOwner(enc, actor); err != nil {
		return uuid.Nil, err
	}

	if err := s.encounterRepo.Delete(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// assertOwner is the single resource-level authorization check shared
// by every ownership-sensitive operation. Admins pass unconditionally.
func assertOwner(enc *models.Encounter, actor models.Actor) error {
	if actor.CanActFor(enc.OwnerUsername) {
		return nil
	}
	return fmt.Errorf("encounter %s is not owned by %q: %w",
		enc.ID, actor.Username, apperrors.ErrForbidden)
}

// validateRefs rejects blank references and references the monster
// lookup cannot resolve.
func (s *encounterService) validateRefs(ctx context.Context, refs []string) error {
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			return fmt.Errorf("blank monster reference: %w", apperrors.ErrValidation)
		}
	}

	missing, err := s.monsterRepo.ResolveRefs(ctx, refs)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("unknown monster refs %v: %w", missing, apperrors.ErrValidation)
	}
	return nil
}

// Ensure encounterService implements EncounterService at compile time.
var _ EncounterService = (*encounterService)(nil)
