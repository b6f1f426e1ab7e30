package model

// IndicatorSet maps an indicator name (EMA_21, RSI_14, ATR_14, ...) to its value on one bar.
// A name missing from the set is undefined on that bar, which is normal inside warm-up.
type IndicatorSet map[string]float64

// Get returns the named value and whether it is defined.
func (s IndicatorSet) Get(name string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s[name]
	return v, ok
}

// Has reports whether every named indicator is defined.
func (s IndicatorSet) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := s[n]; !ok {
			return false
		}
	}
	return true
}
