package rating

import "math"

// Cap on the games-played bonus so grinding alone can't inflate a rating.
const maxGamesBonus = 200

// Estimate derives a skill score from a player's history. Pure and
// deterministic; never negative.
func Estimate(avgLevel float64, gamesPlayed, bestScore int) int {
	bonus := gamesPlayed * 10
	if bonus > maxGamesBonus {
		bonus = maxGamesBonus
	}
	v := math.Floor(avgLevel*100 + float64(bonus) + float64(bestScore)/100)
	if v < 0 {
		return 0
	}
	return int(v)
}

// Baseline is the rating of a player with no recorded matches.
func Baseline() int {
	return Estimate(1, 0, 0)
}
