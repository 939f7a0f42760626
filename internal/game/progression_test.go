package game

import (
	"strings"
	"testing"
)

func TestNextMachineEfficiencyBounds(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		old   float64
		level int
		want  float64
	}{
		{old: 100, level: 0, want: 97},
		{old: 100, level: 5, want: 107},
		{old: 195, level: 10, want: 200},
		{old: 21, level: 0, want: 20},
		{old: 50, level: -4, want: 47},
	}
	for _, tc := range tests {
		got := rules.NextMachineEfficiency(tc.old, tc.level)
		if got != tc.want {
			t.Fatalf("old=%.0f level=%d got=%.1f want=%.1f", tc.old, tc.level, got, tc.want)
		}
	}
}

func TestNextOrganicStatus(t *testing.T) {
	tests := []struct {
		name         string
		d            RoundDecisions
		wasCertified bool
		want         bool
	}{
		{name: "clean attempt", d: RoundDecisions{AttemptOrganic: true, BiologicalControl: true}, want: true},
		{name: "renewal", d: RoundDecisions{AttemptOrganic: true}, wasCertified: true, want: true},
		{name: "fertilizer", d: RoundDecisions{AttemptOrganic: true, Fertilize: true}, want: false},
		{name: "pesticide", d: RoundDecisions{AttemptOrganic: true, Pesticide: true}, wasCertified: true, want: false},
		{name: "lapse", d: RoundDecisions{}, wasCertified: true, want: false},
		{name: "conventional", d: RoundDecisions{Fertilize: true}, want: false},
	}
	for _, tc := range tests {
		got, note := NextOrganicStatus(tc.d, tc.wasCertified)
		if got != tc.want {
			t.Fatalf("%s: got=%v want=%v", tc.name, got, tc.want)
		}
		if note == "" {
			t.Fatalf("%s: expected an explanation", tc.name)
		}
	}
}

func TestProgressLosesCertificationOnConventionalInputs(t *testing.T) {
	rules := DefaultRules()
	p := rules.Progress(120, true, RoundDecisions{AttemptOrganic: true, Fertilize: true, MachineInvestment: 1})
	if p.OrganicCertified {
		t.Fatalf("expected certification to be lost")
	}
	if !strings.Contains(p.Notes[explanationKeyOrganic], "incompatible") {
		t.Fatalf("organic note got=%q", p.Notes[explanationKeyOrganic])
	}
	if p.MachineEfficiency != 119 {
		t.Fatalf("efficiency got=%.1f want=119", p.MachineEfficiency)
	}
}
