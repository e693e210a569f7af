package main

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rps-lite/move"
	"rps-lite/predictor"
)

func TestStrategyNames(t *testing.T) {
	all, err := strategyNames("")
	require.NoError(t, err)
	assert.Equal(t, []string{"biased", "constant", "counter-last", "cycle", "random"}, all)

	picked, err := strategyNames("cycle, constant")
	require.NoError(t, err)
	assert.Equal(t, []string{"cycle", "constant"}, picked)

	_, err = strategyNames("cycle,psychic")
	assert.Error(t, err)
}

func TestScriptedPlayers(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	cycle := strategyFactories["cycle"](rng)
	assert.Equal(t, move.Rock, cycle.Next(move.None))
	assert.Equal(t, move.Paper, cycle.Next(move.None))
	assert.Equal(t, move.Scissors, cycle.Next(move.None))
	assert.Equal(t, move.Rock, cycle.Next(move.None))

	counter := strategyFactories["counter-last"](rng)
	assert.Equal(t, move.Paper, counter.Next(move.Rock))
	assert.True(t, counter.Next(move.None).Valid())

	for name, factory := range strategyFactories {
		p := factory(rng)
		assert.Equal(t, name, p.Name())
		assert.True(t, p.Next(move.Scissors).Valid())
	}
}

func TestScriptStrategy(t *testing.T) {
	t.Cleanup(func() { delete(strategyFactories, "script") })

	assert.Error(t, registerScript("rock,lizard"))
	_, ok := strategyFactories["script"]
	assert.False(t, ok)

	require.NoError(t, registerScript("r, p, p"))
	names, err := strategyNames("script")
	require.NoError(t, err)
	assert.Equal(t, []string{"script"}, names)

	p := strategyFactories["script"](nil)
	var got []move.Move
	for i := 0; i < 4; i++ {
		got = append(got, p.Next(move.None))
	}
	assert.Equal(t, []move.Move{move.Rock, move.Paper, move.Paper, move.Rock}, got)
}

func TestRunIsDeterministicAndPunishesConstantPlayer(t *testing.T) {
	a := run(context.Background(), []string{"constant", "random"}, 60, 3, 4, 9)
	b := run(context.Background(), []string{"constant", "random"}, 60, 3, 1, 9)
	require.Len(t, a, 6)
	assert.Equal(t, a, b)

	for _, r := range a {
		assert.Equal(t, 180, r.Rounds())
		if r.Tier == predictor.TierHard && r.Strategy == "constant" {
			assert.Greater(t, r.WinRate(), 60.0)
		}
	}
}
