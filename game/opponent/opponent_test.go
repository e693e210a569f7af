package opponent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rps-lite/move"
	"rps-lite/predictor"
)

func TestDefaultPersonasLoad(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadDefaults())
	assert.Equal(t, 4, r.Count())

	oracle := r.Get("oracle")
	require.NotNil(t, oracle)
	tier, params := oracle.Settings()
	assert.Equal(t, predictor.TierHard, tier)
	assert.InDelta(t, 0.2, params.ExplorationRate, 1e-9)

	assert.Len(t, r.ByTier(predictor.TierHard), 2)
	assert.Len(t, r.ByTier(predictor.TierEasy), 1)

	all := r.All()
	require.Len(t, all, 4)
	assert.Equal(t, "analyst", all[0].ID)
}

func TestLoadFromJSONSkipsMissingIDAndOverrides(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadFromJSON([]byte(`[{"id":"x","tier":"easy"},{"name":"nobody"}]`)))
	require.NoError(t, r.LoadFromJSON([]byte(`[{"id":"x","tier":"hard","explorationRate":0}]`)))
	assert.Equal(t, 1, r.Count())

	tier, params := r.Get("x").Settings()
	assert.Equal(t, predictor.TierHard, tier)
	assert.Zero(t, params.ExplorationRate)

	assert.Error(t, r.LoadFromJSON([]byte(`{"id":"x"}`)))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"wall","name":"WALL","tier":"medium","patternWindow":4}]`), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadFromFile(path))
	_, params := r.Get("wall").Settings()
	assert.Equal(t, 4, params.PatternWindow)

	assert.Error(t, r.LoadFromFile(filepath.Join(t.TempDir(), "missing.json")))
}

func TestUnknownTierPlaysEasy(t *testing.T) {
	p := &Persona{ID: "odd", Tier: "legendary"}
	tier, _ := p.Settings()
	assert.Equal(t, predictor.TierEasy, tier)
}

func TestManagerSpawnIsSeedStable(t *testing.T) {
	play := func() []move.Move {
		r := NewRegistry()
		require.NoError(t, r.LoadDefaults())
		m := NewManager(r, 1234)
		inst, err := m.Spawn("oracle", 6)
		require.NoError(t, err)
		out := []move.Move{}
		for _, pm := range []move.Move{move.Rock, move.Rock, move.Paper, move.Rock, move.Rock, move.Paper} {
			res, err := inst.Game.PlayRound(pm)
			require.NoError(t, err)
			out = append(out, res.OpponentMove)
		}
		return out
	}
	assert.Equal(t, play(), play())
}

func TestManagerTracksInstances(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadDefaults())
	m := NewManager(r, 1)

	_, err := m.Spawn("ghost", 3)
	assert.Error(t, err)

	a, err := m.Spawn("rookie", 3)
	require.NoError(t, err)
	b, err := m.Spawn("analyst", 3)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Seed, b.Seed)
	assert.Equal(t, 2, m.Live())
	assert.Equal(t, predictor.TierMedium, b.Game.Config().Tier)

	m.Despawn(a.ID)
	assert.Equal(t, 1, m.Live())
	m.Despawn(a.ID)
	assert.Equal(t, 1, m.Live())
}
