package neat

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeight is returned when a connection weight is NaN or infinite.
var ErrInvalidWeight = errors.New("weight must be a finite number")

// biasNodeID is the input node fed a constant 1.0 when bias mode is on.
const biasNodeID = 0

// Horizontal placement of the fixed nodes. X fixes the computation order.
const (
	inputNodeX  = 0.1
	outputNodeX = 0.9
)

// --------------------------- NodeGene ---------------------------

// Position places a node on the plane. X orders the computation, Y is layout
// only.
type Position struct {
	X float64
	Y float64
}

// NodeGene represents a node (neuron) in the neural network genome. Its role is
// derived from the ID through GenomeConfig.NodeRole.
type NodeGene struct {
	ID       int
	Position Position
}

// String returns a string representation of the NodeGene.
func (ng NodeGene) String() string {
	return fmt.Sprintf("NodeGene(ID: %d, X: %.3f, Y: %.3f)", ng.ID, ng.Position.X, ng.Position.Y)
}

// --------------------------- ConnectionGene ---------------------------

// ConnectionKey is the structural identity of a connection.
type ConnectionKey struct {
	InNodeID  int
	OutNodeID int
}

// String returns "in->out".
func (k ConnectionKey) String() string {
	return fmt.Sprintf("%d->%d", k.InNodeID, k.OutNodeID)
}

// ConnectionGene represents a connection between two nodes in the genome.
// Innovation is the historical marking shared by every genome holding the same
// Key.
type ConnectionGene struct {
	Key        ConnectionKey
	Innovation int
	Weight     float64
	Enabled    bool
}

// String returns a string representation of the ConnectionGene.
func (cg ConnectionGene) String() string {
	return fmt.Sprintf("ConnectionGene(Innovation: %d, Key: %s, Weight: %.3f, Enabled: %t)",
		cg.Innovation, cg.Key, cg.Weight, cg.Enabled)
}

// Equal compares only the structural key.
func (cg ConnectionGene) Equal(other ConnectionGene) bool {
	return cg.Key == other.Key
}

// SetWeight stores value clamped to [minVal, maxVal]. NaN and infinite values
// are rejected and leave the weight untouched.
func (cg *ConnectionGene) SetWeight(value, minVal, maxVal float64) error {
	if !isFinite(value) {
		return fmt.Errorf("%w: got %v for connection %s", ErrInvalidWeight, value, cg.Key)
	}
	cg.Weight = clamp(value, minVal, maxVal)
	return nil
}

// midpoint returns the position halfway between two nodes.
func midpoint(a, b Position) Position {
	return Position{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// splittable reports whether the midpoint of a and b lies strictly between
// them on the x axis. Nodes a few ULPs apart have a midpoint that rounds onto
// one of them, and a node placed there could not be ordered.
func splittable(a, b NodeGene) bool {
	lo, hi := math.Min(a.Position.X, b.Position.X), math.Max(a.Position.X, b.Position.X)
	mid := midpoint(a.Position, b.Position).X
	return lo < mid && mid < hi
}
