package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserConfigRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := &UserConfig{
		CurrentProfile: "work",
		Profiles: map[string]Profile{
			"work": {PortalURL: "https://portal.example", Username: "gisuser", Token: "tok"},
			"demo": {PortalURL: "https://www.arcgis.com", Username: "demo"},
		},
	}
	require.NoError(t, SaveUserConfig(cfg))

	loaded, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "work", loaded.CurrentProfile)
	assert.Equal(t, "gisuser", loaded.Profiles["work"].Username)
	assert.Equal(t, "tok", loaded.Profiles["work"].Token)
}

func TestActiveProfile(t *testing.T) {
	t.Parallel()

	cfg := &UserConfig{
		CurrentProfile: "a",
		Profiles: map[string]Profile{
			"a": {Username: "user-a"},
			"b": {Username: "user-b"},
		},
	}

	assert.Equal(t, "user-a", cfg.ActiveProfile("").Username)
	assert.Equal(t, "user-b", cfg.ActiveProfile("b").Username)
	assert.Empty(t, cfg.ActiveProfile("missing").Username)
}

func TestLoadUserConfig_Missing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := LoadUserConfig()
	require.Error(t, err)
}
