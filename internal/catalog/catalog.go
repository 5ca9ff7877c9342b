// Package catalog defines the administrative buildings of the commune and
// the rules deciding which of them a citizen may interact with.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed buildings.yaml
var buildingsYAML []byte

// Well-known building IDs referenced by the gating rules.
const (
	Gosplan = "gosplan"
	Kremlin = "kremlin"
	KGB     = "kgb"
)

// Status is a building's interaction state as shown to the renderer.
type Status string

const (
	StatusActive       Status = "active"
	StatusConstruction Status = "construction"
	StatusLocked       Status = "locked"
	StatusWarning      Status = "warning"
)

// Building is one administrative office on the map.
type Building struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Level       int    `yaml:"level" json:"level"`
	Status      Status `yaml:"status" json:"status"`
	Icon        string `yaml:"icon" json:"icon"`
	GridArea    string `yaml:"grid_area" json:"gridArea"`
}

type file struct {
	Buildings []Building `yaml:"buildings"`
}

// Load parses the embedded building catalog.
func Load() ([]Building, error) {
	var f file
	if err := yaml.Unmarshal(buildingsYAML, &f); err != nil {
		return nil, fmt.Errorf("parse building catalog: %w", err)
	}
	if len(f.Buildings) == 0 {
		return nil, fmt.Errorf("building catalog is empty")
	}
	for _, b := range f.Buildings {
		if b.ID == "" || b.Name == "" {
			return nil, fmt.Errorf("building catalog entry missing id or name")
		}
	}
	return f.Buildings, nil
}

// Interactable decides whether a building accepts citizen interaction given
// the current regime. Before any resources exist only the Kremlin answers;
// while oversight is engaged only the KGB does; locked buildings never do.
func Interactable(b Building, hasResources, oversightIdle bool) bool {
	if !hasResources {
		return b.ID == Kremlin && b.Status != StatusLocked
	}
	if !oversightIdle {
		return b.ID == KGB
	}
	return b.Status != StatusLocked
}

// VisualStatus derives the status the renderer should paint, which may
// differ from the stored status while gating is in effect. The stored
// status is never overwritten so construction and locked states survive
// an oversight episode.
func VisualStatus(b Building, hasResources, oversightIdle bool) Status {
	if !hasResources {
		if b.ID != Kremlin {
			return StatusLocked
		}
		if b.Status != StatusWarning {
			return StatusActive
		}
		return b.Status
	}
	if !oversightIdle && b.ID != KGB {
		return StatusLocked
	}
	return b.Status
}
