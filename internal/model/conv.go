package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Conv is a one-layer convolutional network: a same-padded 1D convolution
// over the signal and k-mer channels, ReLU, global mean pooling, a ReLU
// dense layer and a linear output layer.
type Conv struct {
	spec Spec

	convW, convB *Param // Filters x Channels x Kernel, Filters
	d1W, d1B     *Param // Hidden x Filters, Hidden
	outW, outB   *Param // NumClasses x Hidden, NumClasses
}

func newConv(spec Spec) (Model, error) {
	ch := 1 + spec.KmerChannels
	m := &Conv{
		spec:  spec,
		convW: newParam("conv.w", spec.Filters, ch, spec.Kernel),
		convB: newParam("conv.b", spec.Filters),
		d1W:   newParam("dense1.w", spec.Hidden, spec.Filters),
		d1B:   newParam("dense1.b", spec.Hidden),
		outW:  newParam("out.w", spec.NumClasses, spec.Hidden),
		outB:  newParam("out.b", spec.NumClasses),
	}
	rng := rand.New(rand.NewSource(spec.Seed))
	heInit(rng, m.convW.W, ch*spec.Kernel)
	heInit(rng, m.d1W.W, spec.Filters)
	heInit(rng, m.outW.W, spec.Hidden)
	return m, nil
}

func heInit(rng *rand.Rand, w []float64, fanIn int) {
	if fanIn == 0 {
		return
	}
	std := math.Sqrt(2 / float64(fanIn))
	for i := range w {
		w[i] = rng.NormFloat64() * std
	}
}

func (m *Conv) Arch() string { return "conv" }
func (m *Conv) Spec() Spec   { return m.spec }

func (m *Conv) Params() []*Param {
	return []*Param{m.convW, m.convB, m.d1W, m.d1B, m.outW, m.outB}
}

func (m *Conv) SetParams(states []ParamState) error {
	return setParams(m.Params(), states)
}

type convPass struct {
	x      []float64 // Channels x L
	z      []float64 // Filters x L, post-ReLU
	pooled []float64
	hidden []float64 // post-ReLU
	logits []float64
}

// taps returns the sample range [lo, hi) that kernel tap k reads inside
// the signal for a sequence of length l.
func (m *Conv) taps(k, l int) (off, lo, hi int) {
	off = k - m.spec.Kernel/2
	lo, hi = 0, l
	if off < 0 {
		lo = -off
	}
	if off > 0 {
		hi = l - off
	}
	return off, lo, hi
}

func (m *Conv) forward(in Input) (*convPass, error) {
	if err := m.spec.checkInput(in); err != nil {
		return nil, err
	}
	L := m.spec.SignalLen
	ch := 1 + m.spec.KmerChannels
	K := m.spec.Kernel
	F := m.spec.Filters
	H := m.spec.Hidden

	p := &convPass{x: make([]float64, ch*L), z: make([]float64, F*L)}
	for t, v := range in.Signal {
		p.x[t] = float64(v)
	}
	for i, v := range in.Seq {
		p.x[L+i] = float64(v)
	}

	for f := 0; f < F; f++ {
		zf := p.z[f*L : (f+1)*L]
		for t := range zf {
			zf[t] = m.convB.W[f]
		}
		for c := 0; c < ch; c++ {
			xc := p.x[c*L : (c+1)*L]
			for k := 0; k < K; k++ {
				w := m.convW.W[(f*ch+c)*K+k]
				if w == 0 {
					continue
				}
				off, lo, hi := m.taps(k, L)
				if lo >= hi {
					continue
				}
				floats.AddScaled(zf[lo:hi], w, xc[lo+off:hi+off])
			}
		}
		for t, v := range zf {
			if v < 0 {
				zf[t] = 0
			}
		}
	}

	p.pooled = make([]float64, F)
	for f := range p.pooled {
		p.pooled[f] = floats.Sum(p.z[f*L:(f+1)*L]) / float64(L)
	}
	p.hidden = make([]float64, H)
	for h := range p.hidden {
		v := floats.Dot(m.d1W.W[h*F:(h+1)*F], p.pooled) + m.d1B.W[h]
		p.hidden[h] = math.Max(v, 0)
	}
	p.logits = make([]float64, m.spec.NumClasses)
	for c := range p.logits {
		p.logits[c] = floats.Dot(m.outW.W[c*H:(c+1)*H], p.hidden) + m.outB.W[c]
	}
	return p, nil
}

func (m *Conv) Forward(in Input) ([]float64, error) {
	p, err := m.forward(in)
	if err != nil {
		return nil, err
	}
	return Softmax(p.logits), nil
}

func (m *Conv) Backward(in Input, dLogits []float64) error {
	p, err := m.forward(in)
	if err != nil {
		return err
	}
	L := m.spec.SignalLen
	ch := 1 + m.spec.KmerChannels
	K := m.spec.Kernel
	F := m.spec.Filters
	H := m.spec.Hidden

	dHidden := make([]float64, H)
	for c, g := range dLogits {
		if g == 0 {
			continue
		}
		floats.AddScaled(m.outW.G[c*H:(c+1)*H], g, p.hidden)
		m.outB.G[c] += g
		floats.AddScaled(dHidden, g, m.outW.W[c*H:(c+1)*H])
	}

	dPooled := make([]float64, F)
	for h, g := range dHidden {
		if p.hidden[h] <= 0 || g == 0 {
			continue
		}
		floats.AddScaled(m.d1W.G[h*F:(h+1)*F], g, p.pooled)
		m.d1B.G[h] += g
		floats.AddScaled(dPooled, g, m.d1W.W[h*F:(h+1)*F])
	}

	dz := make([]float64, L)
	for f := 0; f < F; f++ {
		zf := p.z[f*L : (f+1)*L]
		g := dPooled[f] / float64(L)
		active := false
		for t, v := range zf {
			if v > 0 {
				dz[t] = g
				active = true
			} else {
				dz[t] = 0
			}
		}
		if !active || g == 0 {
			continue
		}
		m.convB.G[f] += floats.Sum(dz)
		for c := 0; c < ch; c++ {
			xc := p.x[c*L : (c+1)*L]
			for k := 0; k < K; k++ {
				off, lo, hi := m.taps(k, L)
				if lo >= hi {
					continue
				}
				m.convW.G[(f*ch+c)*K+k] += floats.Dot(dz[lo:hi], xc[lo+off:hi+off])
			}
		}
	}
	return nil
}
