package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// Sampling configures how an epoch is cut into batches.
type Sampling struct {
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Ratio, when set, holds the target per-batch class frequencies. It is
	// normalized to sum to one.
	Ratio    []float64 `yaml:"ratio,omitempty" json:"ratio,omitempty"`
	DropLast bool      `yaml:"drop_last" json:"drop_last"`
}

// Validate checks the sampling against a class count.
func (s Sampling) Validate(numClasses int) error {
	if s.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", s.BatchSize)
	}
	if s.Ratio == nil {
		return nil
	}
	if len(s.Ratio) != numClasses {
		return fmt.Errorf("ratio has %d entries for %d classes", len(s.Ratio), numClasses)
	}
	sum := 0.0
	for _, r := range s.Ratio {
		if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("ratio entries must be finite and non-negative")
		}
		sum += r
	}
	if sum == 0 {
		return fmt.Errorf("ratio must have a positive entry")
	}
	return nil
}

// EpochPlan is an immutable snapshot of one epoch's batches, taken before
// the first batch is drawn.
type EpochPlan struct {
	batches [][]int
}

// NumBatches returns the number of batches.
func (p *EpochPlan) NumBatches() int {
	return len(p.batches)
}

// Batch returns a copy of the chunk indices of batch i.
func (p *EpochPlan) Batch(i int) []int {
	return append([]int(nil), p.batches[i]...)
}

// Len returns the total number of chunk draws in the epoch.
func (p *EpochPlan) Len() int {
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

// Plan draws an epoch plan. Identical seeds give identical plans.
//
// Without a ratio the dataset is shuffled and cut into batches. With a
// ratio every batch allocates class quotas whose expectation is exactly
// BatchSize*ratio[c]: the integer parts are fixed and the leftover slots
// go to classes chosen by systematic sampling on the fractional parts.
// Classes draw without replacement from shuffled queues that are
// reshuffled when exhausted.
func (d *Dataset) Plan(s Sampling, seed int64) (*EpochPlan, error) {
	if err := s.Validate(len(d.Classes)); err != nil {
		return nil, err
	}
	if len(d.Chunks) == 0 {
		return nil, fmt.Errorf("cannot plan an epoch over an empty dataset")
	}
	rng := rand.New(rand.NewSource(seed))
	if s.Ratio == nil {
		return d.planUniform(s, rng), nil
	}
	return d.planBalanced(s, rng)
}

func (d *Dataset) planUniform(s Sampling, rng *rand.Rand) *EpochPlan {
	order := rng.Perm(len(d.Chunks))
	plan := &EpochPlan{}
	for lo := 0; lo < len(order); lo += s.BatchSize {
		hi := lo + s.BatchSize
		if hi > len(order) {
			if s.DropLast && lo > 0 {
				break
			}
			hi = len(order)
		}
		plan.batches = append(plan.batches, order[lo:hi:hi])
	}
	return plan
}

func (d *Dataset) planBalanced(s Sampling, rng *rand.Rand) (*EpochPlan, error) {
	ratio := normalize(s.Ratio)
	byClass := d.indicesByClass()
	for c, r := range ratio {
		if r > 0 && len(byClass[c]) == 0 {
			return nil, fmt.Errorf("class %q has sampling ratio %.3f but no chunks", d.Classes[c], r)
		}
	}

	queues := make([]*classQueue, len(byClass))
	for c, idx := range byClass {
		queues[c] = &classQueue{idx: append([]int(nil), idx...)}
		queues[c].shuffle(rng)
	}

	nBatches := len(d.Chunks) / s.BatchSize
	if nBatches == 0 {
		nBatches = 1
	}
	plan := &EpochPlan{batches: make([][]int, 0, nBatches)}
	for b := 0; b < nBatches; b++ {
		quotas := Quotas(s.BatchSize, ratio, rng)
		batch := make([]int, 0, s.BatchSize)
		for c, q := range quotas {
			for k := 0; k < q; k++ {
				batch = append(batch, queues[c].next(rng))
			}
		}
		rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
		plan.batches = append(plan.batches, batch)
	}
	return plan, nil
}

// Quotas splits a batch of size n across classes so that the expected
// quota of class c is n*ratio[c] and every quota is within one of it.
// ratio must sum to one.
func Quotas(n int, ratio []float64, rng *rand.Rand) []int {
	quotas := make([]int, len(ratio))
	fracs := make([]float64, len(ratio))
	assigned := 0
	for c, r := range ratio {
		exact := float64(n) * r
		quotas[c] = int(math.Floor(exact))
		fracs[c] = exact - float64(quotas[c])
		assigned += quotas[c]
	}
	left := n - assigned
	if left <= 0 {
		return quotas
	}
	// systematic sampling: class c is picked with probability fracs[c]
	u := rng.Float64()
	cum := 0.0
	next := u
	for c, f := range fracs {
		cum += f
		for left > 0 && next < cum {
			quotas[c]++
			left--
			next++
		}
	}
	// rounding can leave a slot when fractions sum to just under left
	for c := len(fracs) - 1; left > 0 && c >= 0; c-- {
		if ratio[c] > 0 {
			quotas[c]++
			left--
		}
	}
	return quotas
}

func normalize(ratio []float64) []float64 {
	sum := 0.0
	for _, r := range ratio {
		sum += r
	}
	out := make([]float64, len(ratio))
	for i, r := range ratio {
		out[i] = r / sum
	}
	return out
}

type classQueue struct {
	idx []int
	pos int
}

func (q *classQueue) shuffle(rng *rand.Rand) {
	rng.Shuffle(len(q.idx), func(i, j int) { q.idx[i], q.idx[j] = q.idx[j], q.idx[i] })
	q.pos = 0
}

func (q *classQueue) next(rng *rand.Rand) int {
	if q.pos == len(q.idx) {
		q.shuffle(rng)
	}
	v := q.idx[q.pos]
	q.pos++
	return v
}
