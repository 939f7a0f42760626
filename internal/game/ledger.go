package game

import (
	"math"

	"github.com/shopspring/decimal"
)

// SeedCosts prices the seed for every crop parcel. Fallow and animal parcels are free.
func (r *Rules) SeedCosts(parcels []Parcel, organic bool) decimal.Decimal {
	total := decimal.Zero
	for _, p := range parcels {
		crop, ok := r.crop(p.Current)
		if !ok {
			continue
		}
		cost := crop.SeedCost
		if organic {
			cost = crop.OrganicSeedCost
		}
		total = total.Add(money(cost))
	}
	return total
}

// InvestmentCosts charges newly dedicated animal parcels (net increase only) and
// the machine investment level.
func (r *Rules) InvestmentCosts(parcels []Parcel, d RoundDecisions) (animals, machines decimal.Decimal) {
	now, before := 0, 0
	for _, p := range parcels {
		if p.Current == AnimalHusbandry {
			now++
		}
		if p.Previous == AnimalHusbandry {
			before++
		}
	}
	animals = decimal.Zero
	if added := now - before; added > 0 {
		animals = money(r.Costs.AnimalParcelInvestment).Mul(decimal.NewFromInt(int64(added)))
	}
	machines = money(r.Machine.CostPerUnit).Mul(decimal.NewFromInt(int64(max(d.MachineInvestment, 0))))
	return animals, machines
}

// RunningCosts fills the running-cost lines of an expense breakdown.
func (r *Rules) RunningCosts(parcels []Parcel, d RoundDecisions, wasCertified bool, efficiency float64) ExpenseBreakdown {
	var animals int64
	for _, p := range parcels {
		if p.Current == AnimalHusbandry {
			animals++
		}
	}
	all := decimal.NewFromInt(int64(len(parcels)))
	out := ExpenseBreakdown{
		Fertilizer:        decimal.Zero,
		Pesticide:         decimal.Zero,
		BiologicalControl: decimal.Zero,
		OrganicControl:    decimal.Zero,
	}
	if d.Fertilize {
		out.Fertilizer = money(r.Costs.FertilizerPerParcel).Mul(all)
	}
	if d.Pesticide {
		out.Pesticide = money(r.Costs.PesticidePerParcel).Mul(all)
	}
	if d.BiologicalControl {
		out.BiologicalControl = money(r.Costs.BiologicalControlPerParcel).Mul(all)
	}
	out.AnimalCare = money(r.Costs.AnimalCarePerParcel).Mul(decimal.NewFromInt(animals))
	if d.AttemptOrganic || wasCertified {
		out.OrganicControl = money(r.Organic.ControlFee)
	}
	perParcel := money(r.Costs.OperationsPerParcel * r.operationsFactor(efficiency))
	out.Operations = perParcel.Mul(decimal.NewFromInt(int64(len(parcels))))
	return out
}

// operationsFactor lowers running costs for efficient machinery and raises them
// for worn-out machinery.
func (r *Rules) operationsFactor(efficiency float64) float64 {
	return clamp(r.Machine.OperationsFactorMin, r.Machine.OperationsFactorMax, 1-(efficiency-r.Machine.Baseline)*r.Machine.OperationsPerPoint)
}

// HarvestIncome sells every harvest at its base price, with the organic bonus when
// certified. Animal parcels earn a flat product income instead.
func (r *Rules) HarvestIncome(parcels []Parcel, organic bool) IncomeBreakdown {
	bonus := 1.0
	if organic {
		bonus = r.Organic.PriceBonus
	}
	out := IncomeBreakdown{
		Harvest:        map[Plantation]decimal.Decimal{},
		AnimalProducts: decimal.Zero,
		Total:          decimal.Zero,
	}
	for _, p := range parcels {
		if p.Current == AnimalHusbandry {
			out.AnimalProducts = out.AnimalProducts.Add(money(r.Costs.AnimalProductIncome * bonus))
			continue
		}
		crop, ok := r.crop(p.Current)
		if !ok {
			continue
		}
		amount := money(p.LastYield * crop.Price * bonus)
		if prev, seen := out.Harvest[p.Current]; seen {
			amount = prev.Add(amount)
		}
		out.Harvest[p.Current] = amount
	}
	out.Total = out.AnimalProducts
	for _, p := range Plantations {
		if amount, ok := out.Harvest[p]; ok {
			out.Total = out.Total.Add(amount)
		}
	}
	return out
}

// Expenses combines the four calculators into one breakdown with its total.
func (r *Rules) Expenses(parcels []Parcel, d RoundDecisions, organic, wasCertified bool, efficiency float64) ExpenseBreakdown {
	out := r.RunningCosts(parcels, d, wasCertified, efficiency)
	out.Seed = r.SeedCosts(parcels, organic)
	out.AnimalInvestment, out.MachineInvestment = r.InvestmentCosts(parcels, d)
	out.Total = decimal.Sum(out.Seed,
		out.AnimalInvestment,
		out.MachineInvestment,
		out.Fertilizer,
		out.Pesticide,
		out.BiologicalControl,
		out.AnimalCare,
		out.OrganicControl,
		out.Operations,
	)
	return out
}

func totalYields(parcels []Parcel) map[Plantation]float64 {
	out := map[Plantation]float64{}
	for _, p := range parcels {
		if p.Current.IsCrop() {
			out[p.Current] += p.LastYield
		}
	}
	for k, v := range out {
		out[k] = math.Round(v*100) / 100
	}
	return out
}
