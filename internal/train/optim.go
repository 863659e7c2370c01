package train

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/aria-lang/remora-go/internal/model"
)

// Optimizer updates parameters from their accumulated gradients and then
// clears the gradients.
type Optimizer interface {
	Name() string
	Step(params []*model.Param)
}

// NewOptimizer builds the optimizer named in cfg.
func NewOptimizer(cfg Config) (Optimizer, error) {
	switch cfg.Optimizer {
	case "", "adamw":
		return NewAdamW(cfg.LearningRate, 0.9, 0.999, 1e-8, cfg.WeightDecay), nil
	case "sgd":
		return NewSGD(cfg.LearningRate, cfg.Momentum, cfg.WeightDecay), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
}

// AdamW is Adam with decoupled weight decay.
type AdamW struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64
	WD    float64
	T     int

	m map[string][]float64
	v map[string][]float64
}

func NewAdamW(lr, beta1, beta2, eps, wd float64) *AdamW {
	return &AdamW{
		LR: lr, Beta1: beta1, Beta2: beta2, Eps: eps, WD: wd,
		m: make(map[string][]float64),
		v: make(map[string][]float64),
	}
}

func (a *AdamW) Name() string { return "adamw" }

func (a *AdamW) Step(params []*model.Param) {
	a.T++
	t := float64(a.T)
	// Bias correction folded into the step size.
	lrT := a.LR * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for _, p := range params {
		mK, ok := a.m[p.Name]
		if !ok || len(mK) != len(p.W) {
			mK = make([]float64, len(p.W))
			a.m[p.Name] = mK
			a.v[p.Name] = make([]float64, len(p.W))
		}
		vK := a.v[p.Name]

		for i := range p.W {
			g := finite(p.G[i])
			mK[i] = a.Beta1*mK[i] + (1-a.Beta1)*g
			vK[i] = a.Beta2*vK[i] + (1-a.Beta2)*g*g
			update := lrT * mK[i] / (math.Sqrt(vK[i]) + a.Eps)
			if math.IsNaN(update) || math.IsInf(update, 0) {
				continue
			}
			p.W[i] -= update
			p.W[i] -= a.LR * a.WD * p.W[i]
		}
		p.ZeroGrad()
	}
}

// SGD is stochastic gradient descent with classical momentum and L2
// weight decay.
type SGD struct {
	LR       float64
	Momentum float64
	WD       float64

	velocity map[string][]float64
}

func NewSGD(lr, momentum, wd float64) *SGD {
	return &SGD{LR: lr, Momentum: momentum, WD: wd, velocity: make(map[string][]float64)}
}

func (s *SGD) Name() string { return "sgd" }

func (s *SGD) Step(params []*model.Param) {
	for _, p := range params {
		vel, ok := s.velocity[p.Name]
		if !ok || len(vel) != len(p.W) {
			vel = make([]float64, len(p.W))
			s.velocity[p.Name] = vel
		}
		for i := range p.W {
			g := finite(p.G[i]) + s.WD*p.W[i]
			vel[i] = s.Momentum*vel[i] + g
			p.W[i] -= s.LR * vel[i]
		}
		p.ZeroGrad()
	}
}

func finite(g float64) float64 {
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return 0
	}
	return g
}

// ClipGradNorm rescales gradients so their global L2 norm is at most
// maxNorm, returning the norm before clipping.
func ClipGradNorm(params []*model.Param, maxNorm float64) float64 {
	var sum float64
	for _, p := range params {
		sum += floats.Dot(p.G, p.G)
	}
	norm := math.Sqrt(sum)
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}
	scale := maxNorm / norm
	for _, p := range params {
		floats.Scale(scale, p.G)
	}
	return norm
}
