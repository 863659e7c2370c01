package model

import "math"

// Softmax returns numerically stable class probabilities for logits.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// minProb bounds log(p) so a confident wrong prediction gives a large but
// finite loss.
const minProb = 1e-12

// CrossEntropy returns the weighted negative log likelihood of label and
// its gradient with respect to the logits, weight*(probs - onehot(label)).
func CrossEntropy(probs []float64, label int, weight float64) (float64, []float64) {
	grad := make([]float64, len(probs))
	for c, p := range probs {
		grad[c] = weight * p
	}
	grad[label] -= weight
	return -weight * math.Log(math.Max(probs[label], minProb)), grad
}
