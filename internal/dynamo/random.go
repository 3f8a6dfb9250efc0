package dynamo

// Source supplies uniform draws in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// ScriptedSource replays a fixed sequence of draws, then repeats Fallback.
// It records how many draws were taken so callers can assert that a code
// path did or did not consume randomness.
type ScriptedSource struct {
	Values   []float64
	Fallback float64
	Draws    int
}

func (s *ScriptedSource) Float64() float64 {
	s.Draws++
	if len(s.Values) > 0 {
		v := s.Values[0]
		s.Values = s.Values[1:]
		return v
	}
	return s.Fallback
}
