package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bastiangx/menuserve/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	urfave "github.com/urfave/cli/v2"
)

func TestNewApp_Flags(t *testing.T) {
	app := newApp()
	assert.Equal(t, AppName, app.Name)
	assert.Equal(t, Version, app.Version)

	defaults := map[string]int{}
	names := map[string]bool{}
	for _, f := range app.Flags {
		for _, n := range f.Names() {
			names[n] = true
		}
		if intFlag, ok := f.(*urfave.IntFlag); ok {
			defaults[intFlag.Name] = intFlag.Value
		}
	}
	for _, want := range []string{"config", "catalog", "debug", "d", "cli", "c", "watch", "no-filter", "rebuild-config"} {
		assert.True(t, names[want], "missing flag %s", want)
	}
	assert.Equal(t, 20, defaults["limit"])
	assert.Equal(t, 1, defaults["prmin"])
	assert.Equal(t, 60, defaults["prmax"])
}

func TestNewApp_Version(t *testing.T) {
	require.NoError(t, newApp().Run([]string{AppName, "--version"}))
}

func TestResolveSource(t *testing.T) {
	src, path := resolveSource("")
	assert.Nil(t, src)
	assert.Empty(t, path)

	src, _ = resolveSource(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Nil(t, src)

	bad := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(bad, []byte("id,name"), 0o644))
	src, _ = resolveSource(bad)
	assert.Nil(t, src)

	good := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, catalog.WriteFile(good, []catalog.Entity{{ID: "r1", Kind: catalog.KindRestaurant, Name: "Dosa Den"}}))
	src, path = resolveSource(good)
	require.NotNil(t, src)
	assert.Equal(t, good, path)
}
