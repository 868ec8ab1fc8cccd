package nn

import (
	"fmt"
	"math"
)

// ActivationFunc maps the weighted input sum of a node to its output.
type ActivationFunc func(x float64) float64

// SigmoidSteepness is the slope factor of the steepened logistic sigmoid used
// by NEAT. It keeps the curve close to linear around zero while still
// saturating at 0 and 1.
const SigmoidSteepness = 4.9

// ActivationFunctions maps function names to the actual activation functions.
// This allows configuration to specify activations by name.
var ActivationFunctions = map[string]ActivationFunc{
	"sigmoid":  Sigmoid,
	"tanh":     Tanh,
	"relu":     ReLU,
	"identity": Identity,
	"clamped":  Clamped,
}

// GetActivation retrieves an activation function by name.
func GetActivation(name string) (ActivationFunc, error) {
	if fn, ok := ActivationFunctions[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unknown activation function: %s", name)
}

// Sigmoid is the steepened logistic function 1 / (1 + e^(-4.9x)).
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-SigmoidSteepness*x))
}

// Tanh activation function.
func Tanh(x float64) float64 {
	return math.Tanh(x)
}

// ReLU (Rectified Linear Unit) activation function.
func ReLU(x float64) float64 {
	return math.Max(0, x)
}

// Identity activation function (linear).
func Identity(x float64) float64 {
	return x
}

// Clamped activation function (clamps output between -1 and 1).
func Clamped(x float64) float64 {
	return math.Max(-1.0, math.Min(x, 1.0))
}
