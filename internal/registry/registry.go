// FilePath: internal/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	nuts "github.com/vaudience/go-nuts"
)

// Placement is the canonical (building, section) for a known sensor UUID.
type Placement struct {
	BuildingID int `json:"building_id"`
	SectionID  int `json:"section_id"`
}

// Canonical is an immutable, copy-on-read UUID→Placement map loaded once at
// startup. A missing or empty path yields an empty, always-miss map.
type Canonical struct {
	byUUID map[string]Placement
}

// Load reads the canonical map from path. An empty path is not an error.
func Load(path string) (*Canonical, error) {
	if path == "" {
		return &Canonical{byUUID: map[string]Placement{}}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			nuts.L.Warnf("[registry] canonical map %s not found, starting empty", path)
			return &Canonical{byUUID: map[string]Placement{}}, nil
		}
		return nil, fmt.Errorf("error reading canonical map %s: %w", path, err)
	}

	var m map[string]Placement
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("error parsing canonical map %s: %w", path, err)
	}

	copyM := make(map[string]Placement, len(m))
	for k, v := range m {
		copyM[k] = v
	}
	nuts.L.Infof("[registry] loaded %d canonical sensor placements", len(copyM))
	return &Canonical{byUUID: copyM}, nil
}

// Lookup returns the canonical placement for uuid, if known.
func (c *Canonical) Lookup(uuid string) (Placement, bool) {
	p, ok := c.byUUID[uuid]
	return p, ok
}

// Resolve returns the canonical placement for uuid if known, otherwise the
// caller-supplied fallback values from the heartbeat payload itself.
func (c *Canonical) Resolve(uuid string, fallbackBuildingID, fallbackSectionID int) (buildingID, sectionID int) {
	if p, ok := c.Lookup(uuid); ok {
		return p.BuildingID, p.SectionID
	}
	return fallbackBuildingID, fallbackSectionID
}
