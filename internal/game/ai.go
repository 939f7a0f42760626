package game

import (
	mathrand "math/rand"
	"sync"
)

const (
	ecoPoorSoil          = 50
	ecoPoorNutrient      = 40
	balancedAvoidRepeats = 0.9
)

var ecoCrops = []Plantation{FieldBean, Oat, Rye, Wheat}

// DecisionGenerator synthesizes decisions for computer-controlled players.
type DecisionGenerator struct {
	rules *Rules
	mu    sync.Mutex
	rand  *mathrand.Rand
}

func NewDecisionGenerator(rules *Rules, rng *mathrand.Rand) *DecisionGenerator {
	return &DecisionGenerator{rules: rules, rand: rng}
}

// Generate draws a full decision bundle for one AI player. previous may be nil.
func (g *DecisionGenerator) Generate(strategy Strategy, field []Parcel, previous *Result) RoundDecisions {
	g.mu.Lock()
	defer g.mu.Unlock()

	strategy = ParseStrategy(string(strategy))
	d := g.farmDecisions(strategy, previous)
	d.Plantations = make(map[int]Plantation, len(field))
	for _, p := range field {
		d.Plantations[p.Number] = g.parcelChoice(strategy, p)
	}
	g.resolveConflicts(&d, strategy)
	d.Submitted = true
	return d
}

func (g *DecisionGenerator) farmDecisions(strategy Strategy, previous *Result) RoundDecisions {
	maxLevel := g.rules.Machine.MaxInvestmentLevel
	lostMoney := previous != nil && previous.ProfitOrLoss.IsNegative()
	var d RoundDecisions
	switch strategy {
	case StrategyProfitMaximizer:
		d.Fertilize = true
		d.Pesticide = true
		d.MachineInvestment = 4 + g.rand.Intn(3)
		if lostMoney {
			d.MachineInvestment = 2
		}
	case StrategyEcoConscious:
		d.BiologicalControl = true
		d.AttemptOrganic = true
		d.MachineInvestment = 1 + g.rand.Intn(2)
	case StrategyRandomExplorer:
		d.Fertilize = g.coin()
		d.Pesticide = g.coin()
		d.BiologicalControl = g.coin()
		d.AttemptOrganic = g.coin()
		d.MachineInvestment = g.rand.Intn(maxLevel + 1)
	default:
		d.Fertilize = g.rand.Float64() < 0.5
		d.Pesticide = g.rand.Float64() < 0.3
		d.BiologicalControl = g.rand.Float64() < 0.5
		d.AttemptOrganic = g.rand.Float64() < 0.4
		d.MachineInvestment = 2 + g.rand.Intn(2)
		if lostMoney {
			d.MachineInvestment--
		}
	}
	d.MachineInvestment = min(max(d.MachineInvestment, 0), maxLevel)
	return d
}

func (g *DecisionGenerator) parcelChoice(strategy Strategy, p Parcel) Plantation {
	switch strategy {
	case StrategyProfitMaximizer:
		return g.rules.HighestPricedCrop()
	case StrategyEcoConscious:
		if p.Soil < ecoPoorSoil {
			return Fallow
		}
		if p.Nutrient < ecoPoorNutrient {
			return FieldBean
		}
		var good []Plantation
		for _, c := range ecoCrops {
			if g.rules.sequenceEffect(c, p.Current) == SequenceGood {
				good = append(good, c)
			}
		}
		if len(good) == 0 {
			good = ecoCrops
		}
		return good[g.rand.Intn(len(good))]
	case StrategyRandomExplorer:
		return Plantations[g.rand.Intn(len(Plantations))]
	default:
		options := balancedOptions()
		choice := options[g.rand.Intn(len(options))]
		if choice == p.Current && g.rand.Float64() < balancedAvoidRepeats {
			rest := make([]Plantation, 0, len(options)-1)
			for _, o := range options {
				if o != p.Current {
					rest = append(rest, o)
				}
			}
			choice = rest[g.rand.Intn(len(rest))]
		}
		return choice
	}
}

// resolveConflicts drops conventional inputs when certification is attempted and
// gives non-eco strategies a fair chance at biological control instead.
func (g *DecisionGenerator) resolveConflicts(d *RoundDecisions, strategy Strategy) {
	if d.AttemptOrganic && (d.Fertilize || d.Pesticide) {
		d.Fertilize = false
		d.Pesticide = false
		if !d.BiologicalControl && strategy != StrategyEcoConscious {
			d.BiologicalControl = g.coin()
		}
	}
}

func (g *DecisionGenerator) coin() bool {
	return g.rand.Intn(2) == 1
}

func balancedOptions() []Plantation {
	out := make([]Plantation, 0, len(Plantations))
	for _, p := range Plantations {
		if p != AnimalHusbandry {
			out = append(out, p)
		}
	}
	return out
}
