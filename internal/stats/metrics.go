package stats

// Mean accumulates a weighted mean.
type Mean struct {
	sum    float64
	weight float64
}

// Add adds value v with weight w.
func (m *Mean) Add(v, w float64) {
	m.sum += v * w
	m.weight += w
}

// Value returns the weighted mean, 0 when empty.
func (m *Mean) Value() float64 {
	if m.weight == 0 {
		return 0
	}
	return m.sum / m.weight
}

// Weight returns the accumulated weight.
func (m *Mean) Weight() float64 {
	return m.weight
}

// Confusion is a square confusion matrix indexed [truth][predicted].
type Confusion [][]int

// NewConfusion returns an empty matrix for n classes.
func NewConfusion(n int) Confusion {
	c := make(Confusion, n)
	for i := range c {
		c[i] = make([]int, n)
	}
	return c
}

// Add records one prediction.
func (c Confusion) Add(truth, predicted int) {
	c[truth][predicted]++
}

// Accuracy returns the fraction of correct predictions.
func (c Confusion) Accuracy() float64 {
	correct, total := 0, 0
	for i, row := range c {
		for j, n := range row {
			total += n
			if i == j {
				correct += n
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// Recall returns per-class recall; classes without examples get 0.
func (c Confusion) Recall() []float64 {
	out := make([]float64, len(c))
	for i, row := range c {
		total := 0
		for _, n := range row {
			total += n
		}
		if total > 0 {
			out[i] = float64(row[i]) / float64(total)
		}
	}
	return out
}
