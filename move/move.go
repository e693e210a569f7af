package move

import (
	"fmt"
	"strings"
)

// Move is a hand shape. The zero value is None and never appears in a played round.
type Move byte

const (
	None     Move = 0
	Rock     Move = 1
	Paper    Move = 2
	Scissors Move = 3
)

// Count is the number of playable moves.
const Count = 3

// All lists the playable moves in index order.
var All = [Count]Move{Rock, Paper, Scissors}

var MoveDictionary = map[Move]string{
	None:     "none",
	Rock:     "rock",
	Paper:    "paper",
	Scissors: "scissors",
}

// Outcome of a round from the player's point of view.
type Outcome byte

const (
	Draw        Outcome = 0
	PlayerWin   Outcome = 1
	OpponentWin Outcome = 2
)

var OutcomeDictionary = map[Outcome]string{
	Draw:        "draw",
	PlayerWin:   "player_win",
	OpponentWin: "opponent_win",
}

// beats[m] is the move that m defeats.
var beats = [...]Move{None, Scissors, Rock, Paper}

// counters[m] is the move that defeats m.
var counters = [...]Move{None, Paper, Scissors, Rock}

func (m Move) String() string {
	if s, ok := MoveDictionary[m]; ok {
		return s
	}
	return fmt.Sprintf("move(%d)", byte(m))
}

// Valid reports whether m is one of Rock, Paper, Scissors.
func (m Move) Valid() bool {
	return m >= Rock && m <= Scissors
}

// Index maps a valid move to 0..2 for table lookups.
func (m Move) Index() int {
	return int(m) - 1
}

// FromIndex is the inverse of Index.
func FromIndex(i int) Move {
	return All[i]
}

// Beats reports whether m defeats other.
func (m Move) Beats(other Move) bool {
	if !m.Valid() || !other.Valid() {
		return false
	}
	return beats[m] == other
}

// Counter returns the move that defeats m.
func Counter(m Move) Move {
	if !m.Valid() {
		return None
	}
	return counters[m]
}

// Judge decides a round between the player and the opponent.
func Judge(player, opponent Move) Outcome {
	switch {
	case player == opponent:
		return Draw
	case player.Beats(opponent):
		return PlayerWin
	default:
		return OpponentWin
	}
}

func (o Outcome) String() string {
	if s, ok := OutcomeDictionary[o]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", byte(o))
}

// Parse accepts a move name or its initial, case-insensitive ("Rock", "r", "SCISSORS").
func Parse(raw string) (Move, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "rock", "r":
		return Rock, nil
	case "paper", "p":
		return Paper, nil
	case "scissors", "scissor", "s":
		return Scissors, nil
	default:
		return None, fmt.Errorf("invalid move: %q", raw)
	}
}

// FromFingers maps the number of extended fingers of a recognised hand to a move:
// a fist is Rock, an open palm is Paper, two fingers are Scissors.
func FromFingers(n int) (Move, bool) {
	switch n {
	case 0:
		return Rock, true
	case 5:
		return Paper, true
	case 2:
		return Scissors, true
	default:
		return None, false
	}
}

// ParseList parses a slice of move names, failing on the first invalid entry.
func ParseList(raw []string) ([]Move, error) {
	out := make([]Move, 0, len(raw))
	for i, s := range raw {
		m, err := Parse(s)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
