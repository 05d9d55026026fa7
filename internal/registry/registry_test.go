// FilePath: internal/registry/registry_test.go
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathYieldsAlwaysMissMap(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	_, ok := c.Lookup("anything")
	require.False(t, ok)
}

func TestLoadMissingFileYieldsEmptyMap(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	_, ok := c.Lookup("anything")
	require.False(t, ok)
}

func TestLoadParsesPlacementMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canonical.json")
	data, err := json.Marshal(map[string]Placement{
		"sensor-a": {BuildingID: 1, SectionID: 2},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	p, ok := c.Lookup("sensor-a")
	require.True(t, ok)
	require.Equal(t, 1, p.BuildingID)
	require.Equal(t, 2, p.SectionID)
}

func TestResolveFallsBackForUnknownUUID(t *testing.T) {
	c := &Canonical{byUUID: map[string]Placement{
		"known": {BuildingID: 1, SectionID: 1},
	}}

	b, s := c.Resolve("known", 99, 99)
	require.Equal(t, 1, b)
	require.Equal(t, 1, s)

	b, s = c.Resolve("unknown", 3, 2)
	require.Equal(t, 3, b)
	require.Equal(t, 2, s)
}
