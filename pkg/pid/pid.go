// Package pid implements a discrete PID controller with a clamped output.
//
// The integral term accumulates unconditionally, also while the output is
// saturated. Callers that need anti-windup must Reset the controller.
package pid

import (
	"github.com/chewxy/math32"
)

// Controller holds gains, output bounds and the running error state.
// It is not safe for concurrent use; each regulator owns its controller.
type Controller struct {
	Kp, Ki, Kd float32

	min, max  float32
	integral  float32
	prevError float32
}

// New creates a controller with output bounds [0, 1].
func New(kp, ki, kd float32) *Controller {
	return &Controller{
		Kp:  kp,
		Ki:  ki,
		Kd:  kd,
		min: 0,
		max: 1,
	}
}

// SetOutputLimits sets the output bounds. Swapped bounds are reordered.
func (c *Controller) SetOutputLimits(min, max float32) {
	if min > max {
		min, max = max, min
	}
	c.min = min
	c.max = max
}

// OutputLimits returns the current output bounds.
func (c *Controller) OutputLimits() (min, max float32) {
	return c.min, c.max
}

// Compute advances the controller by one step and returns the clamped output.
func (c *Controller) Compute(measured, setpoint float32) float32 {
	e := setpoint - measured

	p := c.Kp * e

	c.integral += e
	i := c.Ki * c.integral

	d := c.Kd * (e - c.prevError)
	c.prevError = e

	out := p + i + d
	if math32.IsNaN(out) {
		return c.min
	}
	return math32.Max(c.min, math32.Min(c.max, out))
}

// Reset clears the integral and previous error. Gains and bounds are kept.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
}

// Integral returns the accumulated error sum.
func (c *Controller) Integral() float32 {
	return c.integral
}

// PrevError returns the error observed by the last Compute call.
func (c *Controller) PrevError() float32 {
	return c.prevError
}
