package game

import (
	"encoding/json"
	"fmt"
	"os"
)

type CropRules struct {
	BaseYield        float64 `json:"base_yield"`
	Price            float64 `json:"price"`
	SeedCost         float64 `json:"seed_cost"`
	OrganicSeedCost  float64 `json:"organic_seed_cost"`
	SoilExponent     float64 `json:"soil_exponent"`
	NutrientExponent float64 `json:"nutrient_exponent"`
	NutrientUptake   float64 `json:"nutrient_uptake"`
	Legume           bool    `json:"legume"`
}

type VerminRules struct {
	Damage float64      `json:"damage"`
	Crops  []Plantation `json:"crops"`
}

type SequenceRules struct {
	// Matrix is keyed by current plantation, then previous plantation.
	Matrix       map[Plantation]map[Plantation]SequenceEffect `json:"matrix"`
	YieldBonus   float64                                      `json:"yield_bonus"`
	YieldPenalty float64                                      `json:"yield_penalty"`
	SoilBonus    float64                                      `json:"soil_bonus"`
	SoilPenalty  float64                                      `json:"soil_penalty"`
}

type ControlRules struct {
	PesticideEffectiveness  float64 `json:"pesticide_effectiveness"`
	BiologicalEffectiveness float64 `json:"biological_effectiveness"`
}

type SoilRules struct {
	Target            float64 `json:"target"`
	FertilizerPenalty float64 `json:"fertilizer_penalty"`
	PesticidePenalty  float64 `json:"pesticide_penalty"`
	FloodDamage       float64 `json:"flood_damage"`
	DroughtDamage     float64 `json:"drought_damage"`
	MonocultureTier1  float64 `json:"monoculture_tier1"`
	MonocultureTier2  float64 `json:"monoculture_tier2"`
}

type NutrientRules struct {
	Target           float64 `json:"target"`
	FallowRecovery   float64 `json:"fallow_recovery"`
	AnimalEnrichment float64 `json:"animal_enrichment"`
	FertilizerBonus  float64 `json:"fertilizer_bonus"`
	LegumeBonus      float64 `json:"legume_bonus"`
	ManureBonus      float64 `json:"manure_bonus"`
	RelativeYieldMin float64 `json:"relative_yield_min"`
	RelativeYieldMax float64 `json:"relative_yield_max"`
}

type OrganicRules struct {
	Resilience float64 `json:"resilience"`
	PriceBonus float64 `json:"price_bonus"`
	ControlFee float64 `json:"control_fee"`
}

type MachineRules struct {
	Baseline            float64 `json:"baseline"`
	Min                 float64 `json:"min"`
	Max                 float64 `json:"max"`
	Initial             float64 `json:"initial"`
	GainPerUnit         float64 `json:"gain_per_unit"`
	Depreciation        float64 `json:"depreciation"`
	YieldPerPoint       float64 `json:"yield_per_point"`
	MaxInvestmentLevel  int     `json:"max_investment_level"`
	CostPerUnit         float64 `json:"cost_per_unit"`
	OperationsPerPoint  float64 `json:"operations_per_point"`
	OperationsFactorMin float64 `json:"operations_factor_min"`
	OperationsFactorMax float64 `json:"operations_factor_max"`
}

type CostRules struct {
	FertilizerPerParcel        float64 `json:"fertilizer_per_parcel"`
	PesticidePerParcel         float64 `json:"pesticide_per_parcel"`
	BiologicalControlPerParcel float64 `json:"biological_control_per_parcel"`
	AnimalCarePerParcel        float64 `json:"animal_care_per_parcel"`
	OperationsPerParcel        float64 `json:"operations_per_parcel"`
	AnimalParcelInvestment     float64 `json:"animal_parcel_investment"`
	AnimalProductIncome        float64 `json:"animal_product_income"`
}

type SetupRules struct {
	ParcelCount     int             `json:"parcel_count"`
	StartingCapital float64         `json:"starting_capital"`
	InitialSoil     float64         `json:"initial_soil"`
	InitialNutrient float64         `json:"initial_nutrient"`
	WeatherWeights  map[Weather]int `json:"weather_weights"`
	VerminWeights   map[Vermin]int  `json:"vermin_weights"`
}

// Rules is the immutable rule table shared by every settlement. Build it once at
// start-up and never mutate it afterwards.
type Rules struct {
	Setup     SetupRules                         `json:"setup"`
	Crops     map[Plantation]CropRules           `json:"crops"`
	SoilDelta map[Plantation]float64             `json:"soil_delta"`
	Weather   map[Plantation]map[Weather]float64 `json:"weather"`
	Vermin    map[Vermin]VerminRules             `json:"vermin"`
	Control   ControlRules                       `json:"control"`
	Sequence  SequenceRules                      `json:"sequence"`
	Soil      SoilRules                          `json:"soil"`
	Nutrient  NutrientRules                      `json:"nutrient"`
	Organic   OrganicRules                       `json:"organic"`
	Machine   MachineRules                       `json:"machine"`
	Costs     CostRules                          `json:"costs"`
	FactorMin float64                            `json:"factor_min"`
	FactorMax float64                            `json:"factor_max"`
	Outcomes  [4]float64                         `json:"outcome_thresholds"`
}

func DefaultRules() *Rules {
	return &Rules{
		Setup: SetupRules{
			ParcelCount:     DefaultParcelCount,
			StartingCapital: 100_000,
			InitialSoil:     80,
			InitialNutrient: 80,
			WeatherWeights: map[Weather]int{
				WeatherNormal: 6, WeatherDrought: 2, WeatherFlood: 1, WeatherLateFrost: 1,
			},
			VerminWeights: map[Vermin]int{
				VerminNone: 5, VerminAphids: 2, VerminFritFly: 1, VerminPotatoBeetle: 1, VerminCornBorer: 1,
			},
		},
		Crops: map[Plantation]CropRules{
			FieldBean: {BaseYield: 35, Price: 21, SeedCost: 130, OrganicSeedCost: 160, SoilExponent: 0.5, NutrientExponent: 0.3, NutrientUptake: 0.05, Legume: true},
			Barley:    {BaseYield: 60, Price: 17, SeedCost: 100, OrganicSeedCost: 130, SoilExponent: 0.7, NutrientExponent: 0.7, NutrientUptake: 0.10},
			Oat:       {BaseYield: 50, Price: 16, SeedCost: 90, OrganicSeedCost: 115, SoilExponent: 0.6, NutrientExponent: 0.6, NutrientUptake: 0.09},
			Potato:    {BaseYield: 400, Price: 10, SeedCost: 1600, OrganicSeedCost: 2000, SoilExponent: 1.0, NutrientExponent: 0.9, NutrientUptake: 0.14},
			Corn:      {BaseYield: 90, Price: 17, SeedCost: 220, OrganicSeedCost: 270, SoilExponent: 0.8, NutrientExponent: 1.0, NutrientUptake: 0.15},
			Rye:       {BaseYield: 55, Price: 16, SeedCost: 95, OrganicSeedCost: 120, SoilExponent: 0.4, NutrientExponent: 0.5, NutrientUptake: 0.08},
			Wheat:     {BaseYield: 75, Price: 23, SeedCost: 120, OrganicSeedCost: 150, SoilExponent: 0.7, NutrientExponent: 0.9, NutrientUptake: 0.12},
			SugarBeet: {BaseYield: 600, Price: 3.5, SeedCost: 300, OrganicSeedCost: 380, SoilExponent: 1.0, NutrientExponent: 1.0, NutrientUptake: 0.16},
		},
		SoilDelta: map[Plantation]float64{
			Fallow: 4, AnimalHusbandry: 3, FieldBean: 2, Oat: 1, Rye: 0,
			Barley: -1, Wheat: -2, Potato: -3, Corn: -4, SugarBeet: -4,
		},
		Weather: map[Plantation]map[Weather]float64{
			FieldBean: {WeatherDrought: 0.60, WeatherFlood: 0.65, WeatherLateFrost: 0.70},
			Barley:    {WeatherDrought: 0.75, WeatherFlood: 0.70, WeatherLateFrost: 0.85},
			Oat:       {WeatherDrought: 0.70, WeatherFlood: 0.75, WeatherLateFrost: 0.85},
			Potato:    {WeatherDrought: 0.50, WeatherFlood: 0.60, WeatherLateFrost: 0.65},
			Corn:      {WeatherDrought: 0.75, WeatherFlood: 0.70, WeatherLateFrost: 0.60},
			Rye:       {WeatherDrought: 0.80, WeatherFlood: 0.75, WeatherLateFrost: 0.90},
			Wheat:     {WeatherDrought: 0.70, WeatherFlood: 0.75, WeatherLateFrost: 0.80},
			SugarBeet: {WeatherDrought: 0.65, WeatherFlood: 0.60, WeatherLateFrost: 0.70},
		},
		Vermin: map[Vermin]VerminRules{
			VerminAphids:       {Damage: 0.30, Crops: []Plantation{FieldBean, Wheat, Barley, SugarBeet}},
			VerminFritFly:      {Damage: 0.35, Crops: []Plantation{Oat, Corn}},
			VerminPotatoBeetle: {Damage: 0.45, Crops: []Plantation{Potato}},
			VerminCornBorer:    {Damage: 0.40, Crops: []Plantation{Corn}},
		},
		Control: ControlRules{PesticideEffectiveness: 0.80, BiologicalEffectiveness: 0.50},
		Sequence: SequenceRules{
			Matrix:       defaultSequenceMatrix(),
			YieldBonus:   0.10,
			YieldPenalty: 0.15,
			SoilBonus:    1,
			SoilPenalty:  2,
		},
		Soil: SoilRules{
			Target:            80,
			FertilizerPenalty: 1,
			PesticidePenalty:  2,
			FloodDamage:       5,
			DroughtDamage:     3,
			MonocultureTier1:  3,
			MonocultureTier2:  5,
		},
		Nutrient: NutrientRules{
			Target:           80,
			FallowRecovery:   8,
			AnimalEnrichment: 10,
			FertilizerBonus:  15,
			LegumeBonus:      6,
			ManureBonus:      8,
			RelativeYieldMin: 0.25,
			RelativeYieldMax: 1.5,
		},
		Organic: OrganicRules{Resilience: 1.15, PriceBonus: 1.3, ControlFee: 1500},
		Machine: MachineRules{
			Baseline:            100,
			Min:                 20,
			Max:                 200,
			Initial:             100,
			GainPerUnit:         2,
			Depreciation:        3,
			YieldPerPoint:       0.004,
			MaxInvestmentLevel:  10,
			CostPerUnit:         1000,
			OperationsPerPoint:  0.002,
			OperationsFactorMin: 0.8,
			OperationsFactorMax: 1.2,
		},
		Costs: CostRules{
			FertilizerPerParcel:        60,
			PesticidePerParcel:         50,
			BiologicalControlPerParcel: 90,
			AnimalCarePerParcel:        500,
			OperationsPerParcel:        250,
			AnimalParcelInvestment:     4000,
			AnimalProductIncome:        1300,
		},
		FactorMin: 0.1,
		FactorMax: 1.5,
		Outcomes:  [4]float64{1.20, 0.95, 0.75, 0.50},
	}
}

func defaultSequenceMatrix() map[Plantation]map[Plantation]SequenceEffect {
	m := map[Plantation]map[Plantation]SequenceEffect{}
	set := func(current Plantation, effect SequenceEffect, previous ...Plantation) {
		if m[current] == nil {
			m[current] = map[Plantation]SequenceEffect{}
		}
		for _, p := range previous {
			m[current][p] = effect
		}
	}
	set(Wheat, SequenceGood, Fallow, FieldBean, Potato, Oat, AnimalHusbandry)
	set(Wheat, SequenceBad, Wheat, Barley, Corn)
	set(Barley, SequenceGood, Fallow, FieldBean, Potato, SugarBeet)
	set(Barley, SequenceBad, Barley, Wheat)
	set(Oat, SequenceGood, Fallow, Wheat, Barley, Corn)
	set(Oat, SequenceBad, Oat)
	set(Rye, SequenceGood, Fallow, FieldBean, Potato)
	set(Rye, SequenceBad, Rye)
	set(Corn, SequenceGood, Fallow, FieldBean, AnimalHusbandry, Wheat)
	set(Corn, SequenceBad, Corn, SugarBeet)
	set(Potato, SequenceGood, Fallow, Wheat, Rye, Barley, FieldBean)
	set(Potato, SequenceBad, Potato, SugarBeet)
	set(SugarBeet, SequenceGood, Fallow, Wheat, Barley, AnimalHusbandry)
	set(SugarBeet, SequenceBad, SugarBeet, Potato)
	set(FieldBean, SequenceGood, Fallow, Wheat, Barley, Oat, Rye, Corn)
	set(FieldBean, SequenceBad, FieldBean)
	return m
}

// LoadRules overlays a JSON file onto DefaultRules. An empty path returns the defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	if err := json.Unmarshal(raw, rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := rules.validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *Rules) validate() error {
	if r.Setup.ParcelCount <= 0 {
		return fmt.Errorf("rules: parcel count must be > 0")
	}
	if r.Machine.Min > r.Machine.Max {
		return fmt.Errorf("rules: machine min %.2f exceeds max %.2f", r.Machine.Min, r.Machine.Max)
	}
	for p, c := range r.Crops {
		if c.BaseYield <= 0 {
			return fmt.Errorf("rules: crop %s needs a positive base yield", p)
		}
	}
	if r.Soil.Target <= 0 || r.Nutrient.Target <= 0 {
		return fmt.Errorf("rules: soil and nutrient targets must be > 0")
	}
	return nil
}

func (r *Rules) crop(p Plantation) (CropRules, bool) {
	c, ok := r.Crops[p]
	return c, ok && p.IsCrop()
}

func (r *Rules) weatherMultiplier(p Plantation, w Weather) float64 {
	if m, ok := r.Weather[p][w]; ok {
		return m
	}
	return 1.0
}

func (r *Rules) sequenceEffect(current, previous Plantation) SequenceEffect {
	if previous == PlantationNone {
		return SequenceNone
	}
	if e, ok := r.Sequence.Matrix[current][previous]; ok {
		return e
	}
	return SequenceOK
}

func (r *Rules) verminDamage(v Vermin, p Plantation) (float64, bool) {
	vr, ok := r.Vermin[v]
	if !ok {
		return 0, false
	}
	for _, c := range vr.Crops {
		if c == p {
			return vr.Damage, true
		}
	}
	return 0, false
}

// HighestPricedCrop is the crop with the best configured unit price.
func (r *Rules) HighestPricedCrop() Plantation {
	best := Wheat
	bestPrice := -1.0
	for _, p := range Plantations {
		c, ok := r.crop(p)
		if ok && c.Price > bestPrice {
			best, bestPrice = p, c.Price
		}
	}
	return best
}
