package absorption

import "sort"

// Bin is one bar of the discrete absorption-time histogram.
type Bin struct {
	Round int `json:"round"`
	Runs  int `json:"runs"`
}

// Summary describes absorption across a set of runs. Ratio, Mean and Median
// are nil when undefined (no runs, or no absorbed runs).
type Summary struct {
	Runs      int      `json:"runs"`
	Absorbed  int      `json:"absorbed"`
	Ratio     *float64 `json:"ratio"`
	Mean      *float64 `json:"mean_round"`
	Median    *float64 `json:"median_round"`
	Histogram []Bin    `json:"histogram"`
}

// Summarize computes the absorption ratio, mean and median absorption round,
// and a histogram of absorption rounds (one bin per distinct round, ascending).
func Summarize(results []Result) Summary {
	s := Summary{Runs: len(results), Histogram: []Bin{}}

	var rounds []int
	for _, r := range results {
		if r.Round != nil {
			rounds = append(rounds, *r.Round)
		}
	}
	s.Absorbed = len(rounds)

	if s.Runs > 0 {
		ratio := float64(s.Absorbed) / float64(s.Runs)
		s.Ratio = &ratio
	}
	if len(rounds) == 0 {
		return s
	}

	sort.Ints(rounds)
	sum := 0
	for _, r := range rounds {
		sum += r
	}
	mean := float64(sum) / float64(len(rounds))
	s.Mean = &mean

	mid := len(rounds) / 2
	median := float64(rounds[mid])
	if len(rounds)%2 == 0 {
		median = float64(rounds[mid-1]+rounds[mid]) / 2
	}
	s.Median = &median

	for _, r := range rounds {
		if n := len(s.Histogram); n > 0 && s.Histogram[n-1].Round == r {
			s.Histogram[n-1].Runs++
			continue
		}
		s.Histogram = append(s.Histogram, Bin{Round: r, Runs: 1})
	}
	return s
}
