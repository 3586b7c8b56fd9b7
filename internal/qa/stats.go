package qa

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// PassRate returns the fraction of true outcomes.
func PassRate(outcomes []bool) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	n := 0
	for _, ok := range outcomes {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(outcomes))
}

// BernoulliVariance is p(1-p): 0 at p=0 and p=1, peaking at 0.25 for p=0.5.
func BernoulliVariance(p float64) float64 {
	return p * (1 - p)
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
