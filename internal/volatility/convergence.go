package volatility

import "math"

// Convergence tracks the running mean of per-trial masses and reports when
// its relative change has stayed below Cutoff for Window consecutive trials.
type Convergence struct {
	Cutoff float64
	Window int

	n      int
	mean   float64
	m2     float64
	streak int
}

// Add records one trial and reports whether the estimate has converged.
func (c *Convergence) Add(x float64) bool {
	prev := c.mean
	c.n++
	delta := x - c.mean
	c.mean += delta / float64(c.n)
	c.m2 += delta * (x - c.mean)

	if c.n < 2 {
		return false
	}
	if relativeChange(prev, c.mean) < c.Cutoff {
		c.streak++
	} else {
		c.streak = 0
	}
	return c.streak >= c.Window
}

// N is the number of trials recorded.
func (c *Convergence) N() int { return c.n }

// Mean is the running mean.
func (c *Convergence) Mean() float64 { return c.mean }

// Variance is the running sample variance, 0 below two trials.
func (c *Convergence) Variance() float64 {
	if c.n < 2 {
		return 0
	}
	return c.m2 / float64(c.n-1)
}

func relativeChange(prev, cur float64) float64 {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(cur-prev) / math.Abs(prev)
}
