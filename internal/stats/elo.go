package stats

import "math"

// GameStatistics summarises a W-L-D record.
type GameStatistics struct {
	WinningFraction float64
	EloDifference   float64
	LOS             float64
}

// ComputeStat derives the winning fraction, Elo difference and likelihood
// of superiority.
// https://www.chessprogramming.org/Match_Statistics
func ComputeStat(wins, losses, draws int) GameStatistics {
	games := wins + losses + draws
	if games == 0 {
		return GameStatistics{EloDifference: math.NaN(), LOS: math.NaN()}
	}

	winningFraction := (float64(wins) + 0.5*float64(draws)) / float64(games)
	eloDifference := -math.Log(1/winningFraction-1) * 400 / math.Ln10

	los := math.NaN()
	if wins+losses > 0 {
		los = 0.5 + 0.5*math.Erf(float64(wins-losses)/math.Sqrt(2*float64(wins+losses)))
	}

	return GameStatistics{
		WinningFraction: winningFraction,
		EloDifference:   eloDifference,
		LOS:             los,
	}
}
