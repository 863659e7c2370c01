package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// signalFeatures is the number of summary statistics taken from the
// signal: mean, standard deviation, minimum and maximum.
const signalFeatures = 4

// Linear is multinomial logistic regression over signal summary
// statistics and the mean activation of each k-mer channel.
type Linear struct {
	spec Spec
	w, b *Param // NumClasses x Features, NumClasses
}

func newLinear(spec Spec) (Model, error) {
	d := signalFeatures + spec.KmerChannels
	m := &Linear{
		spec: spec,
		w:    newParam("linear.w", spec.NumClasses, d),
		b:    newParam("linear.b", spec.NumClasses),
	}
	rng := rand.New(rand.NewSource(spec.Seed))
	for i := range m.w.W {
		m.w.W[i] = rng.NormFloat64() * 0.01
	}
	return m, nil
}

func (m *Linear) Arch() string { return "linear" }
func (m *Linear) Spec() Spec   { return m.spec }

func (m *Linear) Params() []*Param { return []*Param{m.w, m.b} }

func (m *Linear) SetParams(states []ParamState) error {
	return setParams(m.Params(), states)
}

func (m *Linear) features(in Input) ([]float64, error) {
	if err := m.spec.checkInput(in); err != nil {
		return nil, err
	}
	L := m.spec.SignalLen
	sig := make([]float64, L)
	for i, v := range in.Signal {
		sig[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(sig, nil)
	if math.IsNaN(std) {
		std = 0
	}
	f := make([]float64, signalFeatures+m.spec.KmerChannels)
	f[0], f[1], f[2], f[3] = mean, std, floats.Min(sig), floats.Max(sig)
	for c := 0; c < m.spec.KmerChannels; c++ {
		var sum float64
		for _, v := range in.Seq[c*L : (c+1)*L] {
			sum += float64(v)
		}
		f[signalFeatures+c] = sum / float64(L)
	}
	return f, nil
}

func (m *Linear) logits(f []float64) []float64 {
	d := len(f)
	out := make([]float64, m.spec.NumClasses)
	for c := range out {
		out[c] = floats.Dot(m.w.W[c*d:(c+1)*d], f) + m.b.W[c]
	}
	return out
}

func (m *Linear) Forward(in Input) ([]float64, error) {
	f, err := m.features(in)
	if err != nil {
		return nil, err
	}
	return Softmax(m.logits(f)), nil
}

func (m *Linear) Backward(in Input, dLogits []float64) error {
	f, err := m.features(in)
	if err != nil {
		return err
	}
	d := len(f)
	for c, g := range dLogits {
		floats.AddScaled(m.w.G[c*d:(c+1)*d], g, f)
		m.b.G[c] += g
	}
	return nil
}
