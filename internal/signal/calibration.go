package signal

// Calibration converts raw DAC values to picoamps: pA = Scale * (dac + Offset).
type Calibration struct {
	Offset float64 `json:"offset"`
	Scale  float64 `json:"scale"`
}

// Identity leaves samples unchanged.
var Identity = Calibration{Offset: 0, Scale: 1}

// IsZero reports whether the calibration was never set.
func (c Calibration) IsZero() bool {
	return c.Offset == 0 && c.Scale == 0
}

// ToPicoAmps applies the calibration. A zero calibration is treated as Identity.
func ToPicoAmps(dacs []float32, c Calibration) []float32 {
	if c.IsZero() {
		c = Identity
	}
	out := make([]float32, len(dacs))
	for i, d := range dacs {
		out[i] = float32(c.Scale * (float64(d) + c.Offset))
	}
	return out
}
