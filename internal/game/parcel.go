package game

import (
	"fmt"
	"math"
)

const (
	machineFactorMin = 0.5
	machineFactorMax = 1.5
)

// ParcelInput is everything the parcel engine reads for one parcel in one round.
type ParcelInput struct {
	Before        Parcel
	Decisions     RoundDecisions
	Weather       Weather
	Vermin        Vermin
	Machine       float64
	Organic       bool
	Plantation    Plantation
	AnimalParcels int
	TotalParcels  int
}

// ProcessParcel advances one parcel by one round. It is a pure function of its
// input; unknown combinations fall back to neutral multipliers.
func (r *Rules) ProcessParcel(in ParcelInput) (Parcel, map[string]string) {
	notes := map[string]string{}
	out := in.Before
	out.PrePrevious = in.Before.Previous
	out.Previous = in.Before.Current
	out.Current = in.Plantation
	out.SequenceEffect = r.sequenceEffect(out.Current, out.Previous)
	notes["sequence"] = sequenceNote(out)

	out.LastYield, out.LastOutcome = r.harvest(in, out, notes)
	out.Soil = r.nextSoil(in, out, notes)
	out.Nutrient = r.nextNutrient(in, out, notes)
	return out, notes
}

func (r *Rules) harvest(in ParcelInput, out Parcel, notes map[string]string) (float64, HarvestOutcome) {
	crop, ok := r.crop(out.Current)
	if !ok {
		notes["yield"] = fmt.Sprintf("%s produces no harvest", out.Current)
		return 0, OutcomeNone
	}

	soilFactor := clamp(r.FactorMin, r.FactorMax, math.Pow(in.Before.Soil/r.Soil.Target, crop.SoilExponent))
	nutrientFactor := clamp(r.FactorMin, r.FactorMax, math.Pow(in.Before.Nutrient/r.Nutrient.Target, crop.NutrientExponent))

	weather := r.weatherMultiplier(out.Current, in.Weather)
	if in.Organic && weather < 1 {
		weather = math.Min(1, weather*r.Organic.Resilience)
		notes["weather"] = fmt.Sprintf("%s reduced the harvest to %.0f%%, softened by organic farming", in.Weather, weather*100)
	} else if weather < 1 {
		notes["weather"] = fmt.Sprintf("%s reduced the harvest to %.0f%%", in.Weather, weather*100)
	}

	vermin := 1.0
	if damage, hit := r.verminDamage(in.Vermin, out.Current); hit {
		effectiveness := 0.0
		control := "no control"
		switch {
		case in.Decisions.Pesticide:
			effectiveness, control = r.Control.PesticideEffectiveness, "pesticide"
		case in.Decisions.BiologicalControl:
			effectiveness, control = r.Control.BiologicalEffectiveness, "biological control"
		}
		vermin = 1 - damage*(1-effectiveness)
		notes["vermin"] = fmt.Sprintf("%s attacked %s; with %s the harvest kept %.0f%%", in.Vermin, out.Current, control, vermin*100)
	}

	sequence := 1.0
	switch out.SequenceEffect {
	case SequenceGood:
		sequence = 1 + r.Sequence.YieldBonus
	case SequenceBad:
		sequence = 1 - r.Sequence.YieldPenalty
	}

	machine := r.machineYieldFactor(in.Machine)
	notes["machine"] = fmt.Sprintf("machine efficiency %.0f gives a yield factor of %.2f", in.Machine, machine)

	yield := crop.BaseYield * soilFactor * nutrientFactor * weather * vermin * sequence * machine
	yield = math.Max(0, yield)
	outcome := r.outcome(yield / crop.BaseYield)
	notes["yield"] = fmt.Sprintf("%s yielded %.1f (%s; soil factor %.2f, nutrient factor %.2f)", out.Current, yield, outcome, soilFactor, nutrientFactor)
	return yield, outcome
}

func (r *Rules) machineYieldFactor(efficiency float64) float64 {
	return clamp(machineFactorMin, machineFactorMax, 1+(efficiency-r.Machine.Baseline)*r.Machine.YieldPerPoint)
}

func (r *Rules) outcome(ratio float64) HarvestOutcome {
	switch {
	case ratio >= r.Outcomes[0]:
		return OutcomeVeryHigh
	case ratio >= r.Outcomes[1]:
		return OutcomeHigh
	case ratio >= r.Outcomes[2]:
		return OutcomeModerate
	case ratio >= r.Outcomes[3]:
		return OutcomeLow
	case ratio > 0:
		return OutcomeVeryLow
	default:
		return OutcomeNone
	}
}

func (r *Rules) nextSoil(in ParcelInput, out Parcel, notes map[string]string) float64 {
	soil := in.Before.Soil + r.SoilDelta[out.Current]

	switch out.SequenceEffect {
	case SequenceGood:
		soil += r.Sequence.SoilBonus
	case SequenceBad:
		soil -= r.Sequence.SoilPenalty
	}

	// inputs are spread farm-wide, so they wear every parcel
	if in.Decisions.Fertilize {
		soil -= r.Soil.FertilizerPenalty
	}
	if in.Decisions.Pesticide {
		soil -= r.Soil.PesticidePenalty
	}
	if out.Current.IsCrop() {
		if out.Current == out.Previous {
			soil -= r.Soil.MonocultureTier1
			note := "second consecutive round of " + string(out.Current) + " strains the soil"
			if out.Previous == out.PrePrevious {
				soil -= r.Soil.MonocultureTier2
				note = "three or more consecutive rounds of " + string(out.Current) + " exhaust the soil"
			}
			notes["monoculture"] = note
		}
	}

	switch in.Weather {
	case WeatherFlood:
		soil -= r.Soil.FloodDamage
	case WeatherDrought:
		soil -= r.Soil.DroughtDamage
	}

	soil = clamp(0, 100, soil)
	notes["soil"] = fmt.Sprintf("soil quality %.1f -> %.1f", in.Before.Soil, soil)
	return soil
}

func (r *Rules) nextNutrient(in ParcelInput, out Parcel, notes map[string]string) float64 {
	nutrient := in.Before.Nutrient
	switch out.Current {
	case Fallow:
		nutrient += r.Nutrient.FallowRecovery
	case AnimalHusbandry:
		nutrient += r.Nutrient.AnimalEnrichment
	}

	if crop, ok := r.crop(out.Current); ok {
		relative := clamp(r.Nutrient.RelativeYieldMin, r.Nutrient.RelativeYieldMax, out.LastYield/crop.BaseYield)
		nutrient -= in.Before.Nutrient * crop.NutrientUptake * relative
		if crop.Legume {
			nutrient += r.Nutrient.LegumeBonus
		}
		if in.AnimalParcels > 0 && in.TotalParcels > 0 {
			nutrient += r.Nutrient.ManureBonus * float64(in.AnimalParcels) / float64(in.TotalParcels)
		}
	}

	if in.Decisions.Fertilize {
		nutrient += r.Nutrient.FertilizerBonus
	}

	nutrient = clamp(0, 100, nutrient)
	notes["nutrient"] = fmt.Sprintf("nutrient level %.1f -> %.1f", in.Before.Nutrient, nutrient)
	return nutrient
}

func sequenceNote(p Parcel) string {
	switch p.SequenceEffect {
	case SequenceNone:
		return fmt.Sprintf("%s has no predecessor", p.Current)
	case SequenceGood:
		return fmt.Sprintf("%s after %s is a good crop sequence", p.Current, p.Previous)
	case SequenceBad:
		return fmt.Sprintf("%s after %s is a poor crop sequence", p.Current, p.Previous)
	default:
		return fmt.Sprintf("%s after %s is a neutral crop sequence", p.Current, p.Previous)
	}
}
