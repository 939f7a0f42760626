package game

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestExpensesBreakdown(t *testing.T) {
	rules := DefaultRules()
	parcels := []Parcel{
		{Number: 1, Current: Wheat, Previous: Fallow, LastYield: 82.5},
		{Number: 2, Current: AnimalHusbandry, Previous: Fallow},
	}
	d := RoundDecisions{Fertilize: true, MachineInvestment: 2}

	got := rules.Expenses(parcels, d, false, false, rules.Machine.Baseline)
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"seed", got.Seed, "120"},
		{"animal investment", got.AnimalInvestment, "4000"},
		{"machine investment", got.MachineInvestment, "2000"},
		{"fertilizer", got.Fertilizer, "120"},
		{"pesticide", got.Pesticide, "0"},
		{"animal care", got.AnimalCare, "500"},
		{"organic control", got.OrganicControl, "0"},
		{"operations", got.Operations, "500"},
		{"total", got.Total, "7240"},
	}
	for _, c := range checks {
		if !c.got.Equal(mustDecimal(t, c.want)) {
			t.Fatalf("%s got=%s want=%s", c.name, c.got, c.want)
		}
	}
}

func TestAnimalInvestmentChargesNetIncreaseOnly(t *testing.T) {
	rules := DefaultRules()
	parcels := []Parcel{
		{Current: AnimalHusbandry, Previous: AnimalHusbandry},
		{Current: AnimalHusbandry, Previous: Wheat},
		{Current: Wheat, Previous: AnimalHusbandry},
	}
	animals, machines := rules.InvestmentCosts(parcels, RoundDecisions{})
	if !animals.IsZero() || !machines.IsZero() {
		t.Fatalf("got animals=%s machines=%s want 0/0", animals, machines)
	}
}

func TestOrganicControlFeeWhileCertified(t *testing.T) {
	rules := DefaultRules()
	parcels := []Parcel{{Current: Rye}}
	out := rules.RunningCosts(parcels, RoundDecisions{}, true, 100)
	if !out.OrganicControl.Equal(mustDecimal(t, "1500")) {
		t.Fatalf("organic fee got=%s want=1500", out.OrganicControl)
	}
}

func TestOperationsCheaperWithBetterMachines(t *testing.T) {
	rules := DefaultRules()
	parcels := []Parcel{{Current: Wheat}, {Current: Fallow}}
	worn := rules.RunningCosts(parcels, RoundDecisions{}, false, 40)
	modern := rules.RunningCosts(parcels, RoundDecisions{}, false, 180)
	if !modern.Operations.LessThan(worn.Operations) {
		t.Fatalf("modern=%s should be below worn=%s", modern.Operations, worn.Operations)
	}
}

func TestHarvestIncome(t *testing.T) {
	rules := DefaultRules()
	parcels := []Parcel{
		{Current: Wheat, LastYield: 82.5},
		{Current: Wheat, LastYield: 10},
		{Current: AnimalHusbandry},
		{Current: Fallow},
	}
	conventional := rules.HarvestIncome(parcels, false)
	if !conventional.Harvest[Wheat].Equal(mustDecimal(t, "2127.5")) {
		t.Fatalf("wheat got=%s want=2127.5", conventional.Harvest[Wheat])
	}
	if !conventional.Total.Equal(mustDecimal(t, "3427.5")) {
		t.Fatalf("total got=%s want=3427.5", conventional.Total)
	}
	organic := rules.HarvestIncome(parcels, true)
	if !organic.Total.GreaterThan(conventional.Total) {
		t.Fatalf("organic total %s should exceed %s", organic.Total, conventional.Total)
	}
	if _, ok := conventional.Harvest[Fallow]; ok {
		t.Fatalf("fallow should not earn income")
	}
}

func TestSeedCostsOrganic(t *testing.T) {
	rules := DefaultRules()
	parcels := []Parcel{{Current: Potato}, {Current: Fallow}, {Current: AnimalHusbandry}}
	if got := rules.SeedCosts(parcels, false); !got.Equal(mustDecimal(t, "1600")) {
		t.Fatalf("conventional got=%s want=1600", got)
	}
	if got := rules.SeedCosts(parcels, true); !got.Equal(mustDecimal(t, "2000")) {
		t.Fatalf("organic got=%s want=2000", got)
	}
}
