package repos

import (
	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
)

// Set bundles one store's repos. Services get a Set per store so every
// operation names its target store explicitly instead of reaching for a
// global handle.
type Set struct {
	Species       SpeciesRepo
	Ecosystems    EcosystemRepo
	Habitats      HabitatRepo
	Groups        GroupRepo
	Observations  ObservationRepo
	Relationships RelationshipRepo
	Preferences   PreferenceRepo
	Runtime       RuntimeRepo
	Channels      ChannelRepo
	Experiments   ExperimentRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) *Set {
	return &Set{
		Species:       NewSpeciesRepo(db, baseLog),
		Ecosystems:    NewEcosystemRepo(db, baseLog),
		Habitats:      NewHabitatRepo(db, baseLog),
		Groups:        NewGroupRepo(db, baseLog),
		Observations:  NewObservationRepo(db, baseLog),
		Relationships: NewRelationshipRepo(db, baseLog),
		Preferences:   NewPreferenceRepo(db, baseLog),
		Runtime:       NewRuntimeRepo(db, baseLog),
		Channels:      NewChannelRepo(db, baseLog),
		Experiments:   NewExperimentRepo(db, baseLog),
	}
}
