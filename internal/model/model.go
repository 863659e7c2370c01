// Package model implements the small neural networks that turn a chunk into
// per-class modification probabilities.
//
// Models hold their parameters as named flat float64 tensors with matching
// gradient buffers. Forward never writes to the model and is safe for
// concurrent use; Backward accumulates into the gradient buffers and must
// be serialized by the caller.
package model

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/kmer"
)

// Input is one chunk in model form.
type Input struct {
	Signal []float32
	// Seq is the channel-major k-mer encoding, KmerChannels rows of
	// len(Signal) samples.
	Seq []float32
}

// NewInput encodes a chunk for a model.
func NewInput(c *chunk.Chunk, enc kmer.Encoder) (Input, error) {
	seq, err := enc.Encode(c.Bases, c.BaseBounds, len(c.Signal))
	if err != nil {
		return Input{}, fmt.Errorf("chunk %s:%d: %w", c.ReadID, c.ReadPos, err)
	}
	return Input{Signal: c.Signal, Seq: seq}, nil
}

// Spec describes a model's architecture and shape.
type Spec struct {
	Arch         string `yaml:"arch" json:"arch"`
	SignalLen    int    `yaml:"-" json:"signal_len"`
	KmerChannels int    `yaml:"-" json:"kmer_channels"`
	NumClasses   int    `yaml:"-" json:"num_classes"`
	Filters      int    `yaml:"filters" json:"filters"`
	Kernel       int    `yaml:"kernel" json:"kernel"`
	Hidden       int    `yaml:"hidden" json:"hidden"`
	Seed         int64  `yaml:"seed" json:"seed"`
}

// ForChunks fills the shape fields from a chunk configuration.
func (s Spec) ForChunks(cfg chunk.Config, numClasses int) Spec {
	s.SignalLen = cfg.SignalLen()
	s.KmerChannels = cfg.Encoder().Channels()
	s.NumClasses = numClasses
	return s
}

func (s Spec) withDefaults() Spec {
	if s.Arch == "" {
		s.Arch = "conv"
	}
	if s.Filters == 0 {
		s.Filters = 16
	}
	if s.Kernel == 0 {
		s.Kernel = 9
	}
	if s.Hidden == 0 {
		s.Hidden = 32
	}
	return s
}

// Validate checks the shape fields.
func (s Spec) Validate() error {
	if s.SignalLen <= 0 {
		return fmt.Errorf("signal length must be positive")
	}
	if s.KmerChannels < 0 {
		return fmt.Errorf("k-mer channels must be non-negative")
	}
	if s.NumClasses < 2 {
		return fmt.Errorf("need at least two classes, got %d", s.NumClasses)
	}
	if s.Filters < 0 || s.Kernel < 0 || s.Hidden < 0 {
		return fmt.Errorf("layer sizes must be non-negative")
	}
	return nil
}

func (s Spec) checkInput(in Input) error {
	if len(in.Signal) != s.SignalLen {
		return fmt.Errorf("input has %d samples, model expects %d", len(in.Signal), s.SignalLen)
	}
	if len(in.Seq) != s.KmerChannels*s.SignalLen {
		return fmt.Errorf("input has %d sequence values, model expects %d", len(in.Seq), s.KmerChannels*s.SignalLen)
	}
	return nil
}

// Param is a named parameter tensor and its gradient.
type Param struct {
	Name  string
	Shape []int
	W     []float64
	G     []float64
}

func newParam(name string, shape ...int) *Param {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Param{Name: name, Shape: shape, W: make([]float64, n), G: make([]float64, n)}
}

// ZeroGrad clears the gradient.
func (p *Param) ZeroGrad() {
	for i := range p.G {
		p.G[i] = 0
	}
}

// ParamState is the serializable value of a Param.
type ParamState struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	W     []float64 `json:"w"`
}

// Model maps an input to class probabilities.
type Model interface {
	Arch() string
	Spec() Spec
	// Forward returns class probabilities.
	Forward(in Input) ([]float64, error)
	// Backward recomputes the forward pass for in and accumulates
	// parameter gradients for the given logit gradient.
	Backward(in Input, dLogits []float64) error
	// Params returns the parameters in a fixed order.
	Params() []*Param
	SetParams(states []ParamState) error
}

// Factory builds a freshly initialized model.
type Factory func(spec Spec) (Model, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"conv":   newConv,
		"linear": newLinear,
	}
)

// Register adds an architecture.
func Register(arch string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[arch] = f
}

// Archs lists registered architectures.
func Archs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New builds a model for spec with seeded initialization.
func New(spec Spec) (Model, error) {
	spec = spec.withDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	registryMu.RLock()
	f, ok := registry[spec.Arch]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model architecture %q", spec.Arch)
	}
	return f(spec)
}

// States copies a model's parameter values.
func States(m Model) []ParamState {
	params := m.Params()
	out := make([]ParamState, len(params))
	for i, p := range params {
		out[i] = ParamState{
			Name:  p.Name,
			Shape: append([]int(nil), p.Shape...),
			W:     append([]float64(nil), p.W...),
		}
	}
	return out
}

// setParams copies states into params, requiring an exact match of names
// and shapes.
func setParams(params []*Param, states []ParamState) error {
	if len(states) != len(params) {
		return fmt.Errorf("got %d parameter tensors, model has %d", len(states), len(params))
	}
	byName := make(map[string]ParamState, len(states))
	for _, s := range states {
		byName[s.Name] = s
	}
	for _, p := range params {
		s, ok := byName[p.Name]
		if !ok {
			return fmt.Errorf("missing parameter %q", p.Name)
		}
		if !sameShape(p.Shape, s.Shape) || len(s.W) != len(p.W) {
			return fmt.Errorf("parameter %q has shape %v, model expects %v", p.Name, s.Shape, p.Shape)
		}
	}
	for _, p := range params {
		copy(p.W, byName[p.Name].W)
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ZeroGrad clears every gradient of m.
func ZeroGrad(m Model) {
	for _, p := range m.Params() {
		p.ZeroGrad()
	}
}

// Norm returns the L2 norm over all parameter values.
func Norm(m Model) float64 {
	var sum float64
	for _, p := range m.Params() {
		for _, w := range p.W {
			sum += w * w
		}
	}
	return math.Sqrt(sum)
}

// GradNorm returns the L2 norm over all gradients.
func GradNorm(m Model) float64 {
	var sum float64
	for _, p := range m.Params() {
		for _, g := range p.G {
			sum += g * g
		}
	}
	return math.Sqrt(sum)
}

// Predict returns the most probable class and the probabilities.
func Predict(m Model, in Input) (int, []float64, error) {
	probs, err := m.Forward(in)
	if err != nil {
		return 0, nil, err
	}
	best := 0
	for c, p := range probs {
		if p > probs[best] {
			best = c
		}
	}
	return best, probs, nil
}
