package vitals

// FirstContentfulPaint returns when content first painted
func FirstContentfulPaint(tl *Timeline) (float64, error) {
	if tl.FirstContentfulPaint == nil {
		return 0, unavailable("no first contentful paint")
	}
	return *tl.FirstContentfulPaint, nil
}

// LargestContentfulPaint returns when the largest content painted. It never
// precedes first contentful paint.
func LargestContentfulPaint(tl *Timeline) (float64, error) {
	if tl.LargestContentfulPaint == nil {
		return 0, unavailable("no largest contentful paint")
	}
	lcp := *tl.LargestContentfulPaint
	if tl.FirstContentfulPaint != nil && lcp < *tl.FirstContentfulPaint {
		lcp = *tl.FirstContentfulPaint
	}
	return lcp, nil
}
