package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"

	"rps-lite/game"
	"rps-lite/move"
	"rps-lite/predictor"
)

var (
	numRounds  = flag.Int("rounds", 200, "Rounds per session")
	numMatches = flag.Int("sessions", 20, "Sessions per tier and strategy")
	workers    = flag.Int("workers", runtime.NumCPU(), "Number of worker goroutines")
	seed       = flag.Int64("seed", 1, "Base seed")
	only       = flag.String("strategies", "", "Comma separated strategies (default all)")
	script     = flag.String("script", "", "Comma separated moves replayed in a loop as the \"script\" strategy")
)

// Result aggregates one tier against one strategy, from the computer's side.
type Result struct {
	Tier     predictor.Tier
	Strategy string
	Wins     int
	Losses   int
	Draws    int
}

func (r Result) Rounds() int { return r.Wins + r.Losses + r.Draws }

func (r Result) WinRate() float64 {
	if r.Rounds() == 0 {
		return 0
	}
	return float64(r.Wins) * 100 / float64(r.Rounds())
}

func main() {
	flag.Parse()

	if *numRounds <= 0 || *numMatches <= 0 || *workers <= 0 {
		fmt.Fprintln(os.Stderr, "Error: rounds, sessions and workers must be positive")
		os.Exit(1)
	}
	if *script != "" {
		if err := registerScript(*script); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}
	names, err := strategyNames(*only)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	results := run(ctx, names, *numRounds, *numMatches, *workers, *seed)
	printResults(os.Stdout, results)
	log.Infof("[TierCheck] %d pairings in %v", len(results), time.Since(start).Round(time.Millisecond))
}

func strategyNames(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		out := make([]string, 0, len(strategyFactories))
		for name := range strategyFactories {
			out = append(out, name)
		}
		sort.Strings(out)
		return out, nil
	}
	var out []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if _, ok := strategyFactories[name]; !ok {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}

type job struct {
	tier     predictor.Tier
	strategy string
	session  int
}

// run plays every tier against every strategy on a worker pool. Each session's seed is
// derived from the base seed, so results do not depend on scheduling.
func run(ctx context.Context, strategies []string, rounds, sessions, nWorkers int, baseSeed int64) []Result {
	tiers := []predictor.Tier{predictor.TierEasy, predictor.TierMedium, predictor.TierHard}

	jobs := make(chan job, nWorkers*2)
	partials := make(chan Result, nWorkers*2)

	var wg sync.WaitGroup
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, err := playSession(ctx, j, rounds, baseSeed)
				if err != nil {
					log.Warnf("[TierCheck] %s vs %s #%d: %v", j.tier, j.strategy, j.session, err)
					continue
				}
				partials <- res
			}
		}()
	}

	go func() {
		defer close(jobs)
		for ti, tier := range tiers {
			for si, name := range strategies {
				for s := 0; s < sessions; s++ {
					select {
					case <-ctx.Done():
						return
					case jobs <- job{tier: tier, strategy: name, session: (ti*len(strategies)+si)*sessions + s}:
					}
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(partials)
	}()

	type key struct {
		tier     predictor.Tier
		strategy string
	}
	totals := make(map[key]*Result)
	for p := range partials {
		k := key{p.Tier, p.Strategy}
		acc, ok := totals[k]
		if !ok {
			acc = &Result{Tier: p.Tier, Strategy: p.Strategy}
			totals[k] = acc
		}
		acc.Wins += p.Wins
		acc.Losses += p.Losses
		acc.Draws += p.Draws
	}

	out := make([]Result, 0, len(totals))
	for _, r := range totals {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].Strategy < out[j].Strategy
	})
	return out
}

func playSession(ctx context.Context, j job, rounds int, baseSeed int64) (Result, error) {
	sessionSeed := baseSeed*1_000_003 + int64(j.session) + 1
	g, err := game.NewGame(game.Config{
		Mode:      game.ModeVsAI,
		MaxRounds: rounds,
		Tier:      j.tier,
		Params:    predictor.DefaultParams(j.tier),
		Seed:      sessionSeed,
	})
	if err != nil {
		return Result{}, err
	}
	player := strategyFactories[j.strategy](rand.New(rand.NewSource(sessionSeed ^ 0x5eed)))

	res := Result{Tier: j.tier, Strategy: j.strategy}
	last := move.None
	for i := 0; i < rounds; i++ {
		if ctx.Err() != nil {
			break
		}
		rr, err := g.PlayRound(player.Next(last))
		if err != nil {
			return res, err
		}
		last = rr.OpponentMove
		switch rr.Outcome {
		case move.OpponentWin:
			res.Wins++
		case move.PlayerWin:
			res.Losses++
		default:
			res.Draws++
		}
	}
	return res, nil
}

func printResults(out *os.File, results []Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tSTRATEGY\tROUNDS\tWINS\tLOSSES\tDRAWS\tWIN%")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%.1f\n",
			r.Tier, r.Strategy, r.Rounds(), r.Wins, r.Losses, r.Draws, r.WinRate())
	}
	w.Flush()
}
