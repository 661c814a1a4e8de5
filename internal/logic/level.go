package logic

// Level is the danger classification of the forward distance.
type Level string

const (
	LevelUnknown Level = "unknown"
	LevelClear   Level = "clear"
	LevelCaution Level = "caution"
	LevelDanger  Level = "danger"
)

// Classify maps a distance reading to a Level. warn1 is the caution
// distance and warn2 the danger distance, both in meters.
func Classify(dist Reading[float64], warn1, warn2 float64) Level {
	switch {
	case !dist.Valid:
		return LevelUnknown
	case dist.Value < warn2:
		return LevelDanger
	case dist.Value < warn1:
		return LevelCaution
	}
	return LevelClear
}
