package main

import (
	"fmt"
	"math/rand"
	"strings"

	"rps-lite/move"
)

// Strategy is a scripted player. Next sees the computer's previous move, or move.None
// before the first round.
type Strategy interface {
	Name() string
	Next(lastOpponent move.Move) move.Move
}

var strategyFactories = map[string]func(rng *rand.Rand) Strategy{
	"random":       func(rng *rand.Rand) Strategy { return &randomPlayer{rng: rng} },
	"constant":     func(*rand.Rand) Strategy { return constantPlayer{m: move.Rock} },
	"cycle":        func(*rand.Rand) Strategy { return &cyclePlayer{} },
	"biased":       func(rng *rand.Rand) Strategy { return &biasedPlayer{rng: rng, favourite: move.Paper, weight: 0.6} },
	"counter-last": func(rng *rand.Rand) Strategy { return &counterLastPlayer{rng: rng} },
}

type randomPlayer struct{ rng *rand.Rand }

func (p *randomPlayer) Name() string { return "random" }

func (p *randomPlayer) Next(move.Move) move.Move {
	return move.FromIndex(p.rng.Intn(move.Count))
}

type constantPlayer struct{ m move.Move }

func (p constantPlayer) Name() string { return "constant" }

func (p constantPlayer) Next(move.Move) move.Move { return p.m }

type cyclePlayer struct{ i int }

func (p *cyclePlayer) Name() string { return "cycle" }

func (p *cyclePlayer) Next(move.Move) move.Move {
	m := move.All[p.i%move.Count]
	p.i++
	return m
}

// biasedPlayer plays favourite with probability weight, otherwise uniformly.
type biasedPlayer struct {
	rng       *rand.Rand
	favourite move.Move
	weight    float64
}

func (p *biasedPlayer) Name() string { return "biased" }

func (p *biasedPlayer) Next(move.Move) move.Move {
	if p.rng.Float64() < p.weight {
		return p.favourite
	}
	return move.FromIndex(p.rng.Intn(move.Count))
}

// counterLastPlayer beats whatever the computer played last round.
type counterLastPlayer struct{ rng *rand.Rand }

func (p *counterLastPlayer) Name() string { return "counter-last" }

func (p *counterLastPlayer) Next(last move.Move) move.Move {
	if !last.Valid() {
		return move.FromIndex(p.rng.Intn(move.Count))
	}
	return move.Counter(last)
}

// scriptPlayer loops over a fixed move sequence.
type scriptPlayer struct {
	moves []move.Move
	i     int
}

func (p *scriptPlayer) Name() string { return "script" }

func (p *scriptPlayer) Next(move.Move) move.Move {
	m := p.moves[p.i%len(p.moves)]
	p.i++
	return m
}

// registerScript adds the "script" strategy playing raw, a comma separated move list.
func registerScript(raw string) error {
	moves, err := move.ParseList(strings.Split(raw, ","))
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}
	if len(moves) == 0 {
		return fmt.Errorf("script: no moves")
	}
	strategyFactories["script"] = func(*rand.Rand) Strategy {
		return &scriptPlayer{moves: moves}
	}
	return nil
}
