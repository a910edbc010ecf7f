package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
)

// SimulationConfig is the seeded ecological catalog: the immutable tables
// every index reference resolves against.
type SimulationConfig struct {
	Species []struct {
		Index    int    `yaml:"index"`
		Name     string `yaml:"name"`
		Color    string `yaml:"color"`
		ImageURL string `yaml:"imageUrl"`
	} `yaml:"species"`
	Ecosystems []struct {
		Index       int    `yaml:"index"`
		Name        string `yaml:"name"`
		Temperature int    `yaml:"temperature"`
		PipeLength  int    `yaml:"pipeLength"`
		BrickArea   int    `yaml:"brickArea"`
	} `yaml:"ecosystems"`
	Habitats []struct {
		Index int    `yaml:"index"`
		Name  string `yaml:"name"`
	} `yaml:"habitats"`
	Sections []struct {
		Name    string   `yaml:"name"`
		Teacher string   `yaml:"teacher"`
		Members []string `yaml:"members"`
		Groups  []struct {
			Index int    `yaml:"index"`
			Name  string `yaml:"name"`
		} `yaml:"groups"`
	} `yaml:"sections"`

	// PlaceholderObservations creates one empty observation per
	// (group, species) slot so edits always have a merge target.
	PlaceholderObservations bool `yaml:"placeholderObservations"`
}

func LoadSimulationConfig(path string) (*SimulationConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read simulation config: %w", err)
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse simulation config: %w", err)
	}
	return &cfg, nil
}

// SeedService populates a fresh store with the simulation catalog. Seeding
// is idempotent: records are written with their natural keys, so a restart
// against an existing store rewrites the same rows.
type SeedService struct {
	log *logger.Logger
}

func NewSeedService(baseLog *logger.Logger) *SeedService {
	return &SeedService{log: baseLog.With("service", "SeedService")}
}

func (s *SeedService) Seed(ctx context.Context, t Target, cfg *SimulationConfig) error {
	err := t.Store.Transaction(ctx, func(tx *gorm.DB) error {
		species := make([]*types.Species, 0, len(cfg.Species))
		for _, sp := range cfg.Species {
			species = append(species, &types.Species{
				Index:    sp.Index,
				Name:     sp.Name,
				Color:    sp.Color,
				ImageURL: sp.ImageURL,
			})
		}
		if err := t.Repos.Species.CreateAll(ctx, tx, species); err != nil {
			return err
		}

		ecosystems := make([]*types.Ecosystem, 0, len(cfg.Ecosystems))
		for _, e := range cfg.Ecosystems {
			ecosystems = append(ecosystems, &types.Ecosystem{
				Index:       e.Index,
				Name:        e.Name,
				Temperature: e.Temperature,
				PipeLength:  e.PipeLength,
				BrickArea:   e.BrickArea,
			})
		}
		if err := t.Repos.Ecosystems.CreateAll(ctx, tx, ecosystems); err != nil {
			return err
		}

		habitats := make([]*types.Habitat, 0, len(cfg.Habitats))
		for _, h := range cfg.Habitats {
			habitats = append(habitats, &types.Habitat{Index: h.Index, Name: h.Name})
		}
		if err := t.Repos.Habitats.CreateAll(ctx, tx, habitats); err != nil {
			return err
		}

		for _, sec := range cfg.Sections {
			section := &types.Section{Name: sec.Name, Teacher: sec.Teacher}
			for _, member := range sec.Members {
				section.Members = append(section.Members, &types.Member{
					SectionName: sec.Name,
					Name:        member,
				})
			}
			for _, g := range sec.Groups {
				section.Groups = append(section.Groups, &types.Group{
					SectionName: sec.Name,
					Index:       g.Index,
					Name:        g.Name,
				})
			}
			if err := t.Repos.Groups.CreateSection(ctx, tx, section); err != nil {
				return err
			}

			if cfg.PlaceholderObservations {
				if err := s.seedPlaceholders(ctx, tx, t, sec.Name, len(sec.Groups), species); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed %s store: %w", t.Store.Role(), err)
	}

	s.log.Info("store seeded",
		"store", t.Store.Role(),
		"species", len(cfg.Species),
		"ecosystems", len(cfg.Ecosystems),
		"sections", len(cfg.Sections),
	)
	return nil
}

func (s *SeedService) seedPlaceholders(ctx context.Context, tx *gorm.DB, t Target, sectionName string, groupCount int, species []*types.Species) error {
	for groupIndex := 0; groupIndex < groupCount; groupIndex++ {
		for _, sp := range species {
			index := sp.Index
			existing, err := t.Repos.Observations.GetBySlot(ctx, tx, sectionName, groupIndex, index)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			observation := &types.SpeciesObservation{
				ID:               types.ObservationID(groupIndex, index),
				SectionName:      sectionName,
				GroupIndex:       groupIndex,
				FromSpeciesIndex: &index,
				LastModified:     time.Now(),
			}
			if err := t.Repos.Observations.Save(ctx, tx, observation); err != nil {
				return err
			}
		}
	}
	return nil
}
