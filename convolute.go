package gwage

// Convolute evaluates the receptor concentration at each query time t as the
// age-weighted sum over the source history,
//
//	receptor(t) = Σ_i source(t − age_i) · fraction_i
//
// Every lookup key must resolve in the source history; a gap returns a
// MissingHistoryError naming the first unresolved time. No interpolation
// happens here; regularize the source first (Series.Regularize) if it is
// sparse.
func Convolute(source *Series, queryTimes []float64, ad *AgeDist) (*Series, error) {
	if source == nil || source.Len() == 0 {
		return nil, invalidParamf("source history is empty")
	}
	if source.Precision() != ad.prec {
		return nil, invalidParamf("source precision (%d) does not match age distribution precision (%d)", source.Precision(), ad.prec)
	}
	out := NewSeries(ad.prec)
	for _, t := range queryTimes {
		kt := timeKey(t, ad.prec)
		c := 0.
		for i, ka := range ad.ageKeys {
			v, ok := source.atKey(kt - ka)
			if !ok {
				return nil, &MissingHistoryError{Key: float64(kt-ka) / pow10(ad.prec)}
			}
			c += v * ad.Fractions[i]
		}
		out.Set(t, c)
	}
	return out, nil
}

// ConvoluteUnchecked is Convolute without type or coverage validation, for
// repeated calls inside an optimization loop. Key coverage must already be
// established by the caller; an unresolved key silently contributes zero.
func ConvoluteUnchecked(source *Series, queryTimes []float64, ad *AgeDist) *Series {
	out := NewSeries(ad.prec)
	if source.stepk == 1 && len(source.keys) > 0 { // quantum grid, offset indexing
		k0, n := source.keys[0], int64(len(source.keys))
		for _, t := range queryTimes {
			kt := timeKey(t, ad.prec)
			c := 0.
			for i, ka := range ad.ageKeys {
				if j := kt - ka - k0; j >= 0 && j < n {
					c += source.vals[j] * ad.Fractions[i]
				}
			}
			out.Set(t, c)
		}
		return out
	}
	for _, t := range queryTimes {
		kt := timeKey(t, ad.prec)
		c := 0.
		for i, ka := range ad.ageKeys {
			v, _ := source.atKey(kt - ka)
			c += v * ad.Fractions[i]
		}
		out.Set(t, c)
	}
	return out
}
