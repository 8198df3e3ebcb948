package dashboard

import "strings"

var ticks = []rune("▁▂▃▄▅▆▇█")

// sparkline scales points between their minimum and maximum onto eight bar
// heights. A flat series renders as the lowest bar.
func sparkline(points []float64) string {
	if len(points) == 0 {
		return ""
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = min(lo, p)
		hi = max(hi, p)
	}

	var b strings.Builder
	for _, p := range points {
		idx := 0
		if hi > lo {
			idx = int((p - lo) / (hi - lo) * float64(len(ticks)-1))
		}
		b.WriteRune(ticks[idx])
	}
	return b.String()
}

// bucketSums adds up every series hour by hour into buckets of size hours.
func bucketSums(series map[string][]float64, size int) []float64 {
	var points []float64
	for _, values := range series {
		for i, v := range values {
			j := i / size
			for len(points) <= j {
				points = append(points, 0)
			}
			points[j] += v
		}
	}
	return points
}
