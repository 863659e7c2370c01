// Package dataset collects labelled chunks for training and serves them in
// reproducible batches.
package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/signal"
)

// Dataset owns a set of chunks extracted with one configuration.
type Dataset struct {
	Config chunk.Config
	// Normalize and UseBasecallScaling record how chunk signal was
	// normalized. A model trained on the dataset must be served with the
	// same settings.
	Normalize          signal.Policy
	UseBasecallScaling bool
	Classes            []string
	Chunks             []chunk.Chunk
}

// New returns an empty dataset normalized with the default policy.
func New(cfg chunk.Config, classes []string) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(classes) < 2 {
		return nil, fmt.Errorf("need at least two classes, got %d", len(classes))
	}
	return &Dataset{
		Config:    cfg,
		Normalize: signal.DefaultPolicy(),
		Classes:   append([]string(nil), classes...),
	}, nil
}

// Len returns the number of chunks.
func (d *Dataset) Len() int {
	return len(d.Chunks)
}

// NumClasses returns the number of classes.
func (d *Dataset) NumClasses() int {
	return len(d.Classes)
}

// Check validates a chunk against the dataset's shape and classes.
func (d *Dataset) Check(c *chunk.Chunk) error {
	if len(c.Signal) != d.Config.SignalLen() {
		return fmt.Errorf("chunk %s:%d has %d samples, want %d", c.ReadID, c.ReadPos, len(c.Signal), d.Config.SignalLen())
	}
	if len(c.Bases) != d.Config.NumBases() || len(c.BaseBounds) != len(c.Bases)+1 {
		return fmt.Errorf("chunk %s:%d has %d context bases, want %d", c.ReadID, c.ReadPos, len(c.Bases), d.Config.NumBases())
	}
	if c.Label < 0 || c.Label >= len(d.Classes) {
		return fmt.Errorf("chunk %s:%d has label %d outside [0,%d)", c.ReadID, c.ReadPos, c.Label, len(d.Classes))
	}
	return nil
}

// Add appends a labelled chunk.
func (d *Dataset) Add(c chunk.Chunk) error {
	if err := d.Check(&c); err != nil {
		return err
	}
	d.Chunks = append(d.Chunks, c)
	return nil
}

// Subset returns a dataset sharing chunks at the given indices.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		Config:             d.Config,
		Normalize:          d.Normalize,
		UseBasecallScaling: d.UseBasecallScaling,
		Classes:            d.Classes,
		Chunks:             make([]chunk.Chunk, len(idx)),
	}
	for i, j := range idx {
		out.Chunks[i] = d.Chunks[j]
	}
	return out
}

// ClassCounts returns the number of chunks per class. Unlabeled chunks
// are not counted.
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, len(d.Classes))
	for i := range d.Chunks {
		if l := d.Chunks[i].Label; l >= 0 && l < len(counts) {
			counts[l]++
		}
	}
	return counts
}

// ClassWeights returns inverse-frequency class weights N/(K*n_c). A
// perfectly balanced dataset gets all ones; absent classes get 0.
func (d *Dataset) ClassWeights() []float64 {
	counts := d.ClassCounts()
	present := 0
	for _, n := range counts {
		if n > 0 {
			present++
		}
	}
	w := make([]float64, len(counts))
	if present == 0 {
		return w
	}
	for c, n := range counts {
		if n > 0 {
			w[c] = float64(len(d.Chunks)) / float64(present*n)
		}
	}
	return w
}

// Split divides the dataset into train and validation parts, keeping each
// class's proportion. The same seed always gives the same split.
func (d *Dataset) Split(valFraction float64, seed int64) (train, val *Dataset, err error) {
	if valFraction < 0 || valFraction >= 1 || math.IsNaN(valFraction) {
		return nil, nil, fmt.Errorf("validation fraction %v outside [0,1)", valFraction)
	}
	rng := rand.New(rand.NewSource(seed))
	byClass := d.indicesByClass()

	var trainIdx, valIdx []int
	for _, idx := range byClass {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nVal := int(math.Round(float64(len(idx)) * valFraction))
		valIdx = append(valIdx, idx[:nVal]...)
		trainIdx = append(trainIdx, idx[nVal:]...)
	}
	sort.Ints(trainIdx)
	sort.Ints(valIdx)
	return d.Subset(trainIdx), d.Subset(valIdx), nil
}

func (d *Dataset) indicesByClass() [][]int {
	byClass := make([][]int, len(d.Classes))
	for i := range d.Chunks {
		if l := d.Chunks[i].Label; l >= 0 && l < len(byClass) {
			byClass[l] = append(byClass[l], i)
		}
	}
	return byClass
}

// Merge appends other's chunks. Configurations and classes must agree.
func (d *Dataset) Merge(other *Dataset) error {
	if !d.Config.Equal(other.Config) {
		return fmt.Errorf("cannot merge datasets with different chunk configurations")
	}
	if d.Normalize != other.Normalize || d.UseBasecallScaling != other.UseBasecallScaling {
		return fmt.Errorf("cannot merge datasets with different normalization")
	}
	if len(d.Classes) != len(other.Classes) {
		return fmt.Errorf("cannot merge datasets with %d and %d classes", len(d.Classes), len(other.Classes))
	}
	for i := range d.Classes {
		if d.Classes[i] != other.Classes[i] {
			return fmt.Errorf("class %d differs: %q vs %q", i, d.Classes[i], other.Classes[i])
		}
	}
	d.Chunks = append(d.Chunks, other.Chunks...)
	return nil
}
