package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmforge/encounter-engine/pkg/apperrors"
	"github.com/dmforge/encounter-engine/pkg/models"
)

// mockEncounterRepository is a configurable in-memory mock for testing
// EncounterService. It keeps enough state to replay the multi-step use
// cases (create then attach roster).
type mockEncounterRepository struct {
	encounters map[uuid.UUID]*models.Encounter

	createErr  error
	getErr     error
	listErr    error
	replaceErr error
	deleteErr  error

	// Capture inputs for verification
	capturedRefs []string
	replaceCalls int
}

func newMockEncounterRepository() *mockEncounterRepository {
	return &mockEncounterRepository{encounters: make(map[uuid.UUID]*models.Encounter)}
}

func (m *mockEncounterRepository) Create(ctx context.Context, enc *models.Encounter) error {
	if m.createErr != nil {
		return m.createErr
	}
	if enc.ID == uuid.Nil {
		enc.ID = uuid.New()
	}
	stored := *enc
	m.encounters[enc.ID] = &stored
	return nil
}

func (m *mockEncounterRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Encounter, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	enc, ok := m.encounters[id]
	if !ok {
		return nil, fmt.Errorf("encounter %s: %w", id, apperrors.ErrNotFound)
	}
	copied := *enc
	return &copied, nil
}

func (m *mockEncounterRepository) ListByOwner(ctx context.Context, owner string) (map[uuid.UUID]*models.Encounter, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := make(map[uuid.UUID]*models.Encounter)
	for id, enc := range m.encounters {
		if enc.OwnerUsername == owner {
			copied := *enc
			result[id] = &copied
		}
	}
	return result, nil
}

func (m *mockEncounterRepository) ReplaceRoster(ctx context.Context, id uuid.UUID, refs []string) (*models.Encounter, error) {
	m.replaceCalls++
	m.capturedRefs = refs
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	enc, ok := m.encounters[id]
	if !ok {
		return nil, fmt.Errorf("encounter %s: %w", id, apperrors.ErrNotFound)
	}
	enc.Roster = models.AggregateRoster(refs)
	copied := *enc
	return &copied, nil
}

func (m *mockEncounterRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.encounters[id]; !ok {
		return fmt.Errorf("encounter %s: %w", id, apperrors.ErrNotFound)
	}
	delete(m.encounters, id)
	return nil
}

// mockUserDirectory implements repositories.UserRepository over a set
// of known usernames.
type mockUserDirectory struct {
	known     map[string]bool
	existsErr error
}

func (m *mockUserDirectory) Create(ctx context.Context, user *models.User) error { return nil }
func (m *mockUserDirectory) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if !m.known[username] {
		return nil, fmt.Errorf("user %q: %w", username, apperrors.ErrNotFound)
	}
	return &models.User{Username: username}, nil
}
func (m *mockUserDirectory) Exists(ctx context.Context, username string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.known[username], nil
}
func (m *mockUserDirectory) FindAll(ctx context.Context) ([]*models.User, error) { return nil, nil }
func (m *mockUserDirectory) Update(ctx context.Context, username string, patch models.UserPatch) (*models.User, error) {
	return nil, nil
}
func (m *mockUserDirectory) Remove(ctx context.Context, username string) error { return nil }

// mockMonsterLookup implements repositories.MonsterRepository over a
// set of known refs.
type mockMonsterLookup struct {
	known      map[string]bool
	resolveErr error
}

func (m *mockMonsterLookup) ResolveRefs(ctx context.Context, refs []string) ([]string, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	var missing []string
	seen := make(map[string]bool)
	for _, ref := range refs {
		if !m.known[ref] && !seen[ref] {
			seen[ref] = true
			missing = append(missing, ref)
		}
	}
	return missing, nil
}

func (m *mockMonsterLookup) FindAll(ctx context.Context) ([]*models.Monster, error) {
	return nil, nil
}

type encounterTestDeps struct {
	repo     *mockEncounterRepository
	users    *mockUserDirectory
	monsters *mockMonsterLookup
	service  EncounterService
}

func newTestEncounterService() *encounterTestDeps {
	repo := newMockEncounterRepository()
	users := &mockUserDirectory{known: map[string]bool{"alice": true, "bob": true}}
	monsters := &mockMonsterLookup{known: map[string]bool{
		"goblin-1": true, "goblin-2": true, "ogre-1": true,
	}}
	return &encounterTestDeps{
		repo:     repo,
		users:    users,
		monsters: monsters,
		service:  NewEncounterService(repo, users, monsters, zap.NewNop()),
	}
}

func rosterRefSet(enc *models.Encounter) map[string]bool {
	set := make(map[string]bool)
	for _, m := range enc.Roster {
		set[m.MonsterRef] = true
	}
	return set
}

func TestEncounterService_CreateWithMonsters_RosterMatches(t *testing.T) {
	deps := newTestEncounterService()

	enc, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Goblin Ambush", "forest trap", []string{"goblin-1", "goblin-2"})
	if err != nil {
		t.Fatalf("CreateWithMonsters failed: %v", err)
	}

	got, err := deps.service.GetOwned(context.Background(), enc.ID, models.Actor{Username: "alice"})
	if err != nil {
		t.Fatalf("GetOwned failed: %v", err)
	}

	want := map[string]bool{"goblin-1": true, "goblin-2": true}
	set := rosterRefSet(got)
	if len(set) != len(want) {
		t.Fatalf("expected roster %v, got %v", want, set)
	}
	for ref := range want {
		if !set[ref] {
			t.Errorf("roster missing %q", ref)
		}
	}
	if got.OwnerUsername != "alice" {
		t.Errorf("expected owner alice, got %q", got.OwnerUsername)
	}
}

func TestEncounterService_CreateWithMonsters_NilRefsSkipsRosterStep(t *testing.T) {
	deps := newTestEncounterService()

	enc, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Empty Room", "", nil)
	if err != nil {
		t.Fatalf("CreateWithMonsters failed: %v", err)
	}

	if deps.repo.replaceCalls != 0 {
		t.Errorf("expected no roster call for nil refs, got %d", deps.repo.replaceCalls)
	}
	if len(enc.Roster) != 0 {
		t.Errorf("expected empty roster, got %v", enc.Roster)
	}
}

func TestEncounterService_CreateWithMonsters_UnknownOwner(t *testing.T) {
	deps := newTestEncounterService()

	_, err := deps.service.CreateWithMonsters(context.Background(),
		"mallory", "Heist", "", nil)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown owner, got %v", err)
	}
	if len(deps.repo.encounters) != 0 {
		t.Error("should not have created an encounter for an unknown owner")
	}
}

func TestEncounterService_CreateWithMonsters_UnknownMonsterRef(t *testing.T) {
	deps := newTestEncounterService()

	_, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Dragon Lair", "", []string{"goblin-1", "tarrasque-9"})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown monster ref, got %v", err)
	}
	if len(deps.repo.encounters) != 0 {
		t.Error("should not have created an encounter with an invalid roster")
	}
}

func TestEncounterService_CreateWithMonsters_BlankRef(t *testing.T) {
	deps := newTestEncounterService()

	_, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Ambush", "", []string{"  "})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank ref, got %v", err)
	}
}

func TestEncounterService_SetRoster_ClearsWithEmptyList(t *testing.T) {
	deps := newTestEncounterService()
	actor := models.Actor{Username: "alice"}

	enc, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Goblin Ambush", "", []string{"goblin-1"})
	if err != nil {
		t.Fatalf("CreateWithMonsters failed: %v", err)
	}

	cleared, err := deps.service.SetRoster(context.Background(), enc.ID, actor, []string{})
	if err != nil {
		t.Fatalf("SetRoster failed: %v", err)
	}
	if len(cleared.Roster) != 0 {
		t.Errorf("expected cleared roster, got %v", cleared.Roster)
	}

	got, err := deps.service.GetOwned(context.Background(), enc.ID, actor)
	if err != nil {
		t.Fatalf("GetOwned failed: %v", err)
	}
	if len(got.Roster) != 0 {
		t.Errorf("expected empty roster after clear, got %v", got.Roster)
	}
}

func TestEncounterService_SetRoster_ReplaceIsFullSwap(t *testing.T) {
	deps := newTestEncounterService()
	actor := models.Actor{Username: "alice"}

	enc, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Goblin Ambush", "forest trap", []string{"goblin-1", "goblin-2"})
	if err != nil {
		t.Fatalf("CreateWithMonsters failed: %v", err)
	}

	updated, err := deps.service.SetRoster(context.Background(), enc.ID, actor, []string{"ogre-1"})
	if err != nil {
		t.Fatalf("SetRoster failed: %v", err)
	}

	set := rosterRefSet(updated)
	if len(set) != 1 || !set["ogre-1"] {
		t.Fatalf("expected roster {ogre-1} only, got %v", set)
	}
}

func TestEncounterService_SetRoster_Forbidden(t *testing.T) {
	deps := newTestEncounterService()

	enc, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Goblin Ambush", "", nil)
	if err != nil {
		t.Fatalf("CreateWithMonsters failed: %v", err)
	}

	_, err = deps.service.SetRoster(context.Background(), enc.ID,
		models.Actor{Username: "bob"}, []string{"ogre-1"})
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestEncounterService_GetOwned_Forbidden(t *testing.T) {
	deps := newTestEncounterService()

	enc, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Goblin Ambush", "", nil)
	if err != nil {
		t.Fatalf("CreateWithMonsters failed: %v", err)
	}

	// bob is authenticated and may have passed the path-level gate for
	// his own username, but the encounter belongs to alice.
	_, err = deps.service.GetOwned(context.Background(), enc.ID, models.Actor{Username: "bob"})
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestEncounterService_GetOwned_AdminBypass(t *testing.T) {
	deps := newTestEncounterService()

	enc, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Goblin Ambush", "", nil)
	if err != nil {
		t.Fatalf("CreateWithMonsters failed: %v", err)
	}

	got, err := deps.service.GetOwned(context.Background(), enc.ID,
		models.Actor{Username: "root", Admin: true})
	if err != nil {
		t.Fatalf("expected admin to read any encounter, got %v", err)
	}
	if got.ID != enc.ID {
		t.Errorf("expected encounter %s, got %s", enc.ID, got.ID)
	}
}

func TestEncounterService_DeleteOwned_ThenGetNotFound(t *testing.T) {
	deps := newTestEncounterService()
	actor := models.Actor{Username: "alice"}

	enc, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Goblin Ambush", "", []string{"goblin-1"})
	if err != nil {
		t.Fatalf("CreateWithMonsters failed: %v", err)
	}

	deleted, err := deps.service.DeleteOwned(context.Background(), enc.ID, actor)
	if err != nil {
		t.Fatalf("DeleteOwned failed: %v", err)
	}
	if deleted != enc.ID {
		t.Errorf("expected deleted id %s, got %s", enc.ID, deleted)
	}

	_, err = deps.service.GetOwned(context.Background(), enc.ID, actor)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestEncounterService_DeleteOwned_Forbidden(t *testing.T) {
	deps := newTestEncounterService()

	enc, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Goblin Ambush", "", nil)
	if err != nil {
		t.Fatalf("CreateWithMonsters failed: %v", err)
	}

	_, err = deps.service.DeleteOwned(context.Background(), enc.ID, models.Actor{Username: "bob"})
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, ok := deps.repo.encounters[enc.ID]; !ok {
		t.Error("encounter should not have been deleted")
	}
}

func TestEncounterService_ListOwned_EmptyForUnknownOwner(t *testing.T) {
	deps := newTestEncounterService()

	encounters, err := deps.service.ListOwned(context.Background(), "bob")
	if err != nil {
		t.Fatalf("ListOwned failed: %v", err)
	}
	if len(encounters) != 0 {
		t.Errorf("expected empty mapping, got %v", encounters)
	}
}

func TestEncounterService_Scenario_GoblinAmbush(t *testing.T) {
	deps := newTestEncounterService()
	actor := models.Actor{Username: "alice"}
	ctx := context.Background()

	enc, err := deps.service.CreateWithMonsters(ctx,
		"alice", "Goblin Ambush", "forest trap", []string{"goblin-1", "goblin-2"})
	if err != nil {
		t.Fatalf("CreateWithMonsters failed: %v", err)
	}
	set := rosterRefSet(enc)
	if len(set) != 2 || !set["goblin-1"] || !set["goblin-2"] {
		t.Fatalf("expected roster {goblin-1, goblin-2}, got %v", set)
	}

	if _, err := deps.service.SetRoster(ctx, enc.ID, actor, []string{"ogre-1"}); err != nil {
		t.Fatalf("SetRoster failed: %v", err)
	}
	got, err := deps.service.GetOwned(ctx, enc.ID, actor)
	if err != nil {
		t.Fatalf("GetOwned failed: %v", err)
	}
	set = rosterRefSet(got)
	if len(set) != 1 || !set["ogre-1"] {
		t.Fatalf("expected roster {ogre-1} only, got %v", set)
	}

	deleted, err := deps.service.DeleteOwned(ctx, enc.ID, actor)
	if err != nil {
		t.Fatalf("DeleteOwned failed: %v", err)
	}
	if deleted != enc.ID {
		t.Errorf("expected deleted id %s, got %s", enc.ID, deleted)
	}
	if _, err := deps.service.GetOwned(ctx, enc.ID, actor); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestEncounterService_CreateWithMonsters_RosterAttachFails(t *testing.T) {
	deps := newTestEncounterService()
	deps.repo.replaceErr = errors.New("database error")

	_, err := deps.service.CreateWithMonsters(context.Background(),
		"alice", "Goblin Ambush", "", []string{"goblin-1"})
	if err == nil {
		t.Fatal("expected error when roster attach fails")
	}
	// The two-step sequence is not one transaction: the encounter row
	// survives the failed attach.
	if len(deps.repo.encounters) != 1 {
		t.Errorf("expected orphaned encounter row to persist, got %d rows", len(deps.repo.encounters))
	}
}
