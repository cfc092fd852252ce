// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package report

import "math"

// CoordinateEpsilon is the threshold below which a coordinate counts as
// effectively zero. The sentinel position (0,0) means "unknown"; epsilon
// comparison keeps the check deterministic under IEEE 754 rounding.
const CoordinateEpsilon = 1e-9

// Position is a point on the simulated road plane, in meters.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Unknown reports whether p is the unknown-location sentinel (0,0).
func (p Position) Unknown() bool {
	return math.Abs(p.X) < CoordinateEpsilon && math.Abs(p.Y) < CoordinateEpsilon
}

// DistanceTo returns the Euclidean distance to other in meters.
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}
