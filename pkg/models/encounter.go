package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Encounter represents one planned or recorded tabletop encounter. The
// owner is set at creation and never changes; the roster is the current
// set of monster references attached to the encounter.
type Encounter struct {
	ID            uuid.UUID          `json:"id"`
	OwnerUsername string             `json:"owner_username"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Roster        []EncounterMonster `json:"monsters"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// EncounterMonster is one row of an encounter's roster: a monster
// reference and how many of it participate.
type EncounterMonster struct {
	MonsterRef string `json:"monster_ref"`
	Quantity   int    `json:"quantity"`
}

// RosterRefs returns the distinct monster references in the roster.
func (e *Encounter) RosterRefs() []string {
	refs := make([]string, 0, len(e.Roster))
	for _, m := range e.Roster {
		refs = append(refs, m.MonsterRef)
	}
	return refs
}

// AggregateRoster collapses a list of monster references into roster
// rows, counting duplicate references into quantities. Output order is
// deterministic (sorted by reference).
func AggregateRoster(refs []string) []EncounterMonster {
	if len(refs) == 0 {
		return nil
	}
	counts := make(map[string]int, len(refs))
	for _, ref := range refs {
		counts[ref]++
	}
	roster := make([]EncounterMonster, 0, len(counts))
	for ref, n := range counts {
		roster = append(roster, EncounterMonster{MonsterRef: ref, Quantity: n})
	}
	sort.Slice(roster, func(i, j int) bool {
		return roster[i].MonsterRef < roster[j].MonsterRef
	})
	return roster
}
