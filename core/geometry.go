package core

import (
	"math"

	"github.com/signalsfoundry/impact-simulator/model"
)

// Vec3 is a Cartesian vector. Units depend on the caller: unit directions
// for orbit bases, AU for heliocentric positions, km for Earth-fixed ones.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Scale returns v multiplied by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Unit returns v scaled to length one. ok is false for the zero vector and
// for vectors with non-finite components.
func (v Vec3) Unit() (u Vec3, ok bool) {
	n := v.Norm()
	if n == 0 || !finite(n) {
		return Vec3{}, false
	}
	return v.Scale(1 / n), true
}

// Finite reports whether every component is a finite number.
func (v Vec3) Finite() bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

// Model converts v into the wire/model representation.
func (v Vec3) Model() model.Vec {
	return model.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// FromModel converts a model vector into a Vec3.
func FromModel(v model.Vec) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }
func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }
