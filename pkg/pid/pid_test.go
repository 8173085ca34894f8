package pid

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	c := New(2.0, 0.05, 1.0)

	min, max := c.OutputLimits()
	assert.Equal(t, float32(0), min)
	assert.Equal(t, float32(1), max)
	assert.Zero(t, c.Integral())
	assert.Zero(t, c.PrevError())
}

func TestCompute(t *testing.T) {
	c := New(0.1, 0.01, 0.05)
	c.SetOutputLimits(-10, 10)

	// e = 2: P = 0.2, I = 0.01*2, D = 0.05*2
	out := c.Compute(20, 22)
	assert.InDelta(t, 0.32, out, 1e-5)
	assert.InDelta(t, 2, c.Integral(), 1e-6)
	assert.InDelta(t, 2, c.PrevError(), 1e-6)

	// e = 1: P = 0.1, I = 0.01*3, D = 0.05*(1-2)
	out = c.Compute(21, 22)
	assert.InDelta(t, 0.08, out, 1e-5)
	assert.InDelta(t, 3, c.Integral(), 1e-6)
}

func TestCompute_Clamped(t *testing.T) {
	tests := []struct {
		name       string
		kp, ki, kd float32
		min, max   float32
		measured   float32
		setpoint   float32
	}{
		{"large positive error", 2.0, 0.05, 1.0, 0, 1, -10, 60},
		{"large negative error", 2.0, 0.05, 1.0, 0, 1, 60, -10},
		{"huge gains", 1e6, 1e6, 1e6, 0, 1, 0, 100},
		{"negative gains", -5, -5, -5, 0, 1, 0, 100},
		{"custom bounds", 1.5, 0.03, 0.8, -0.5, 0.25, 10, 90},
		{"zero error", 1, 1, 1, 0, 1, 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.kp, tt.ki, tt.kd)
			c.SetOutputLimits(tt.min, tt.max)
			for i := 0; i < 500; i++ {
				out := c.Compute(tt.measured, tt.setpoint)
				assert.GreaterOrEqual(t, out, tt.min)
				assert.LessOrEqual(t, out, tt.max)
			}
		})
	}
}

func TestCompute_NaN(t *testing.T) {
	c := New(1, 1, 1)
	out := c.Compute(math32.NaN(), 20)
	assert.Equal(t, float32(0), out)
}

func TestSetOutputLimits_Swapped(t *testing.T) {
	c := New(1, 0, 0)
	c.SetOutputLimits(5, -5)
	min, max := c.OutputLimits()
	assert.Equal(t, float32(-5), min)
	assert.Equal(t, float32(5), max)
}

func TestReset(t *testing.T) {
	used := New(2.0, 0.05, 1.0)
	for i := 0; i < 20; i++ {
		used.Compute(float32(i), 22)
	}
	used.Reset()

	assert.Zero(t, used.Integral())
	assert.Zero(t, used.PrevError())
	assert.Equal(t, float32(2.0), used.Kp)

	fresh := New(2.0, 0.05, 1.0)
	for _, m := range []float32{21.7, 21.9, 22.3, 22.1} {
		assert.Equal(t, fresh.Compute(m, 22), used.Compute(m, 22))
	}
}

// The integral keeps growing while the output is saturated. This is the
// expected behavior of the controller, not a defect.
func TestCompute_IntegralWindup(t *testing.T) {
	c := New(2.0, 0.05, 1.0)

	for i := 0; i < 100; i++ {
		assert.Equal(t, float32(1), c.Compute(10, 22))
	}
	assert.InDelta(t, 1200, c.Integral(), 1e-3)

	// The wound-up integral keeps the output saturated after overshoot.
	assert.Equal(t, float32(1), c.Compute(24, 22))
}
