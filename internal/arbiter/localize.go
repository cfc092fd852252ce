// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package arbiter

import "github.com/roadguard/roadguard/internal/report"

// Sighting weights for the centroid. Witness sightings pinpoint the
// reporter; roadside units only bound it to their coverage area.
const (
	witnessSightingWeight = 1.0
	rsuSightingWeight     = 0.5
)

// localize estimates where a fabricated report actually came from, as the
// weighted centroid of the positions that observed the reporter. It refuses
// to guess below the observation minimums.
func (a *Arbiter) localize(in Input) (report.Position, bool) {
	if len(in.WitnessSightings) < a.cfg.MinWitnessObservations &&
		len(in.RSUSightings) < a.cfg.MinRSUObservations {
		return report.Position{}, false
	}

	var sumX, sumY, sumW float64
	for _, p := range in.WitnessSightings {
		sumX += witnessSightingWeight * p.X
		sumY += witnessSightingWeight * p.Y
		sumW += witnessSightingWeight
	}
	for _, p := range in.RSUSightings {
		sumX += rsuSightingWeight * p.X
		sumY += rsuSightingWeight * p.Y
		sumW += rsuSightingWeight
	}
	if sumW == 0 {
		return report.Position{}, false
	}
	return report.Position{X: sumX / sumW, Y: sumY / sumW}, true
}
