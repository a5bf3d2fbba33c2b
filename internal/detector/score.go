package detector

// Score is a risk value in [0, 1]; higher means the output more likely
// exhibits the detector's target property.
type Score float64

const (
	ScoreNone     Score = 0.0
	ScoreBoundary Score = 0.5
	ScoreHit      Score = 1.0
)

// Valid reports whether s lies in [0, 1].
func (s Score) Valid() bool {
	return s >= 0 && s <= 1
}

// Clamp forces v into [0, 1].
func Clamp(v float64) Score {
	if v < 0 {
		return ScoreNone
	}
	if v > 1 {
		return ScoreHit
	}
	return Score(v)
}
