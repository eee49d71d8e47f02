package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/runoshun/tracksync/internal/domain"
	"github.com/runoshun/tracksync/internal/testutil"
	"github.com/runoshun/tracksync/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_Execute(t *testing.T) {
	t.Run("creates config", func(t *testing.T) {
		manager := &testutil.MockConfigManager{
			Info: domain.ConfigInfo{Path: "/home/test/.config/tracksync/config.toml"},
		}

		uc := usecase.NewInitConfig(manager)
		out, err := uc.Execute(context.Background(), usecase.InitConfigInput{})

		require.NoError(t, err)
		assert.Equal(t, "/home/test/.config/tracksync/config.toml", out.Path)
		assert.True(t, manager.InitCalled)
	})

	t.Run("returns error when config exists", func(t *testing.T) {
		manager := &testutil.MockConfigManager{InitErr: domain.ErrConfigExists}

		uc := usecase.NewInitConfig(manager)
		_, err := uc.Execute(context.Background(), usecase.InitConfigInput{Config: domain.NewDefaultConfig()})

		assert.ErrorIs(t, err, domain.ErrConfigExists)
	})
}

func TestShowConfig_Execute(t *testing.T) {
	t.Run("returns file info and effective config", func(t *testing.T) {
		manager := &testutil.MockConfigManager{
			Info: domain.ConfigInfo{
				Path:    "/home/test/.config/tracksync/config.toml",
				Content: "[log]\nlevel = \"debug\"",
				Exists:  true,
			},
		}
		loader := testutil.NewMockConfigLoader()
		loader.Config.Log.Level = "debug"

		uc := usecase.NewShowConfig(manager, loader)
		out, err := uc.Execute(context.Background(), usecase.ShowConfigInput{})

		require.NoError(t, err)
		assert.True(t, out.ConfigFile.Exists)
		assert.Equal(t, "[log]\nlevel = \"debug\"", out.ConfigFile.Content)
		assert.Equal(t, "debug", out.EffectiveConfig.Log.Level)
	})

	t.Run("propagates load error", func(t *testing.T) {
		loader := testutil.NewMockConfigLoader()
		loader.LoadErr = errors.New("broken toml")

		uc := usecase.NewShowConfig(&testutil.MockConfigManager{}, loader)
		_, err := uc.Execute(context.Background(), usecase.ShowConfigInput{})

		assert.EqualError(t, err, "broken toml")
	})
}
