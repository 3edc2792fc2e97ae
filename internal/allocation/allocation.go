// Package allocation distributes the day's shared costs across the
// roster. It is pure: a function of players, games and prices to
// per-player amounts plus aggregate totals, with no side effects and no
// error conditions. Degenerate input (empty roster, zero games) degrades
// to zero amounts rather than faulting.
package allocation

import (
	"math"

	"badminton-expense-bot/internal/model"
)

// Policy selects the cost distribution rule.
type Policy string

const (
	// PolicyUsage charges shuttlecocks by per-game usage and splits the
	// court fee evenly across the whole roster. ShuttlecockPrice is a
	// unit price under this policy.
	PolicyUsage Policy = "usage"
	// PolicySlot pools shuttlecock cost and court fee and charges per
	// game slot played. ShuttlecockPrice is a day total under this
	// policy; per-game counts and the reuse discount are ignored.
	PolicySlot Policy = "slot"
)

// Valid reports whether p names a known policy.
func (p Policy) Valid() bool {
	return p == PolicyUsage || p == PolicySlot
}

// reusedMultiplier halves the per-unit cost of a game played with
// re-used shuttlecocks.
const reusedMultiplier = 0.5

// PlayerShare is one roster row of the summary.
type PlayerShare struct {
	Name         string
	Games        int
	Shuttlecocks float64 // usage units accrued, games × count/4
	Cost         float64 // raw owed amount
	RoundedCost  float64 // Cost rounded up to a whole currency unit
}

// Summary is the computed allocation for one day.
type Summary struct {
	Policy Policy
	Shares []PlayerShare // roster order

	TotalShuttlecocks    float64
	TotalShuttlecockCost float64
	CourtFee             float64
	TotalCost            float64
	CostPerPlayer        float64 // TotalCost / roster size
	RoundedTotal         float64 // sum of per-player rounded amounts
}

// Compute distributes costs under the given policy. An empty roster
// yields an empty summary.
func Compute(policy Policy, players []string, games []model.Game, shuttlecockPrice, courtFee float64) Summary {
	if policy == PolicyUsage {
		return computeUsage(players, games, shuttlecockPrice, courtFee)
	}
	return computeSlot(players, games, shuttlecockPrice, courtFee)
}

// computeUsage implements PolicyUsage. Each game spreads its shuttlecock
// count evenly over its four slots; the reuse discount applies per game
// before accumulation, not to the total.
func computeUsage(players []string, games []model.Game, unitPrice, courtFee float64) Summary {
	s := Summary{Policy: PolicyUsage, CourtFee: courtFee}
	if len(players) == 0 {
		return s
	}

	usage := make(map[string]float64, len(players))
	cost := make(map[string]float64, len(players))
	gamesPlayed := make(map[string]int, len(players))

	for i := range games {
		g := &games[i]
		perPlayer := g.Shuttlecocks / model.PlayersPerGame
		multiplier := 1.0
		if g.ReusedShuttlecocks {
			multiplier = reusedMultiplier
		}
		costThisGame := perPlayer * unitPrice * multiplier
		for _, name := range g.Players() {
			usage[name] += perPlayer
			cost[name] += costThisGame
			gamesPlayed[name]++
		}
	}

	courtShare := courtFee / float64(len(players))
	for _, name := range players {
		total := cost[name] + courtShare
		s.Shares = append(s.Shares, PlayerShare{
			Name:         name,
			Games:        gamesPlayed[name],
			Shuttlecocks: usage[name],
			Cost:         total,
			RoundedCost:  math.Ceil(total),
		})
		s.TotalShuttlecocks += usage[name]
		s.TotalShuttlecockCost += cost[name]
		s.RoundedTotal += math.Ceil(total)
	}

	s.TotalCost = s.TotalShuttlecockCost + courtFee
	s.CostPerPlayer = s.TotalCost / float64(len(players))
	return s
}

// computeSlot implements PolicySlot. The combined pool is divided by the
// number of game slots; a player owes one slot share per appearance.
func computeSlot(players []string, games []model.Game, shuttlecockTotal, courtFee float64) Summary {
	s := Summary{Policy: PolicySlot, CourtFee: courtFee}
	if len(players) == 0 {
		return s
	}

	s.TotalCost = shuttlecockTotal + courtFee
	s.TotalShuttlecockCost = shuttlecockTotal

	costPerSlot := 0.0
	if len(games) > 0 {
		costPerSlot = s.TotalCost / float64(model.PlayersPerGame*len(games))
	}

	for i := range games {
		s.TotalShuttlecocks += games[i].Shuttlecocks
	}

	for _, name := range players {
		played := 0
		for i := range games {
			if games[i].Has(name) {
				played++
			}
		}
		raw := float64(played) * costPerSlot
		s.Shares = append(s.Shares, PlayerShare{
			Name:        name,
			Games:       played,
			Cost:        raw,
			RoundedCost: math.Ceil(raw),
		})
		s.RoundedTotal += math.Ceil(raw)
	}

	s.CostPerPlayer = s.TotalCost / float64(len(players))
	return s
}
