// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package report

import (
	"errors"
	"math"
	"testing"
	"time"
)

func validReport() IncidentReport {
	return IncidentReport{
		ReportID:         "r-1",
		ReporterID:       "veh-12",
		Kind:             KindAccident,
		Location:         Position{X: 4120, Y: -8},
		ReporterPosition: Position{X: 4115, Y: -8},
		Timestamp:        time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC),
		Witnesses:        []string{"veh-7", "veh-9"},
		RSUID:            "rsu-2",
	}
}

func TestIncidentReportValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*IncidentReport)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *IncidentReport) {}, wantErr: false},
		{name: "empty witness list is fine", mutate: func(r *IncidentReport) { r.Witnesses = nil }, wantErr: false},
		{name: "missing report id", mutate: func(r *IncidentReport) { r.ReportID = "" }, wantErr: true},
		{name: "missing reporter id", mutate: func(r *IncidentReport) { r.ReporterID = "" }, wantErr: true},
		{name: "unknown kind", mutate: func(r *IncidentReport) { r.Kind = "parade" }, wantErr: true},
		{name: "zero timestamp", mutate: func(r *IncidentReport) { r.Timestamp = time.Time{} }, wantErr: true},
		{name: "unknown location", mutate: func(r *IncidentReport) { r.Location = Position{} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReport()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrMalformedReport) {
					t.Fatalf("error %v does not wrap ErrMalformedReport", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPositionDistance(t *testing.T) {
	a := Position{X: 0, Y: 0}
	b := Position{X: 3, Y: 4}
	if got := a.DistanceTo(b); math.Abs(got-5) > 1e-12 {
		t.Fatalf("DistanceTo = %v, want 5", got)
	}
	if got := b.DistanceTo(b); got != 0 {
		t.Fatalf("self distance = %v, want 0", got)
	}
}

func TestPositionUnknown(t *testing.T) {
	if !(Position{}).Unknown() {
		t.Fatal("zero position should be unknown")
	}
	if (Position{X: 0.5}).Unknown() {
		t.Fatal("non-zero position should not be unknown")
	}
	// Sub-epsilon noise still counts as the sentinel.
	if !(Position{X: 1e-12, Y: -1e-12}).Unknown() {
		t.Fatal("sub-epsilon position should be unknown")
	}
}
