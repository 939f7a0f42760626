package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type GameStatus string

const (
	StatusPending  GameStatus = "pending"
	StatusActive   GameStatus = "active"
	StatusFinished GameStatus = "finished"
)

type Plantation string

const (
	PlantationNone  Plantation = ""
	Fallow          Plantation = "fallow"
	FieldBean       Plantation = "field_bean"
	Barley          Plantation = "barley"
	Oat             Plantation = "oat"
	Potato          Plantation = "potato"
	Corn            Plantation = "corn"
	Rye             Plantation = "rye"
	Wheat           Plantation = "wheat"
	SugarBeet       Plantation = "sugar_beet"
	AnimalHusbandry Plantation = "animal_husbandry"
)

// Plantations lists every selectable land use, in display order.
var Plantations = []Plantation{
	Fallow, FieldBean, Barley, Oat, Potato, Corn, Rye, Wheat, SugarBeet, AnimalHusbandry,
}

// IsCrop reports whether the plantation produces a harvest.
func (p Plantation) IsCrop() bool {
	switch p {
	case PlantationNone, Fallow, AnimalHusbandry:
		return false
	}
	return p.Valid()
}

func (p Plantation) Valid() bool {
	for _, known := range Plantations {
		if p == known {
			return true
		}
	}
	return false
}

type Weather string

const (
	WeatherNormal    Weather = "normal"
	WeatherDrought   Weather = "drought"
	WeatherFlood     Weather = "flood"
	WeatherLateFrost Weather = "late_frost"
)

var Weathers = []Weather{WeatherNormal, WeatherDrought, WeatherFlood, WeatherLateFrost}

type Vermin string

const (
	VerminNone         Vermin = "none"
	VerminAphids       Vermin = "aphids"
	VerminFritFly      Vermin = "frit_fly"
	VerminPotatoBeetle Vermin = "potato_beetle"
	VerminCornBorer    Vermin = "corn_borer"
)

var Vermins = []Vermin{VerminNone, VerminAphids, VerminFritFly, VerminPotatoBeetle, VerminCornBorer}

type SequenceEffect string

const (
	SequenceGood SequenceEffect = "good"
	SequenceOK   SequenceEffect = "ok"
	SequenceBad  SequenceEffect = "bad"
	SequenceNone SequenceEffect = "none"
)

type HarvestOutcome string

const (
	OutcomeVeryHigh HarvestOutcome = "very_high"
	OutcomeHigh     HarvestOutcome = "high"
	OutcomeModerate HarvestOutcome = "moderate"
	OutcomeLow      HarvestOutcome = "low"
	OutcomeVeryLow  HarvestOutcome = "very_low"
	OutcomeNone     HarvestOutcome = "none"
)

type Strategy string

const (
	StrategyProfitMaximizer Strategy = "profit_maximizer"
	StrategyEcoConscious    Strategy = "eco_conscious"
	StrategyRandomExplorer  Strategy = "random_explorer"
	StrategyBalanced        Strategy = "balanced"
)

var Strategies = []Strategy{StrategyProfitMaximizer, StrategyEcoConscious, StrategyRandomExplorer, StrategyBalanced}

type Game struct {
	ID              string              `json:"id"`
	AdminID         string              `json:"admin_id"`
	NumberOfRounds  int                 `json:"number_of_rounds"`
	CurrentRound    int                 `json:"current_round_number"`
	Status          GameStatus          `json:"status"`
	WeatherSequence []Weather           `json:"weather_sequence"`
	VerminSequence  []Vermin            `json:"vermin_sequence"`
	PlayerIDs       []string            `json:"player_ids"`
	AIStrategies    map[string]Strategy `json:"ai_strategies,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// WeatherFor returns the weather of a 1-based round, normal when out of range.
func (g Game) WeatherFor(round int) Weather {
	if round < 1 || round > len(g.WeatherSequence) {
		return WeatherNormal
	}
	return g.WeatherSequence[round-1]
}

// VerminFor returns the vermin event of a 1-based round, none when out of range.
func (g Game) VerminFor(round int) Vermin {
	if round < 1 || round > len(g.VerminSequence) {
		return VerminNone
	}
	return g.VerminSequence[round-1]
}

type Player struct {
	ID       string   `json:"id"`
	GameID   string   `json:"game_id"`
	Number   int      `json:"number"`
	Name     string   `json:"name"`
	IsAI     bool     `json:"is_ai"`
	Strategy Strategy `json:"ai_strategy,omitempty"`
	// OwnerID is the user allowed to submit for a human seat. Empty seats are
	// played by the game admin until someone claims them.
	OwnerID string `json:"owner_id,omitempty"`
}

type Parcel struct {
	Number         int            `json:"number"`
	Soil           float64        `json:"soil_quality"`
	Nutrient       float64        `json:"nutrient_level"`
	Current        Plantation     `json:"current_plantation"`
	Previous       Plantation     `json:"previous_plantation"`
	PrePrevious    Plantation     `json:"pre_previous_plantation"`
	SequenceEffect SequenceEffect `json:"crop_sequence_effect"`
	LastYield      float64        `json:"last_harvest_yield"`
	LastOutcome    HarvestOutcome `json:"last_harvest_outcome"`
}

type RoundDecisions struct {
	Fertilize         bool               `json:"fertilize"`
	Pesticide         bool               `json:"pesticide"`
	BiologicalControl bool               `json:"biological_control"`
	AttemptOrganic    bool               `json:"attempt_organic_certification"`
	MachineInvestment int                `json:"machine_investment_level"`
	Plantations       map[int]Plantation `json:"plantations"`
	Submitted         bool               `json:"submitted"`
}

type IncomeBreakdown struct {
	Harvest        map[Plantation]decimal.Decimal `json:"harvest"`
	AnimalProducts decimal.Decimal                `json:"animal_products"`
	Total          decimal.Decimal                `json:"total"`
}

type ExpenseBreakdown struct {
	Seed              decimal.Decimal `json:"seed"`
	AnimalInvestment  decimal.Decimal `json:"animal_investment"`
	MachineInvestment decimal.Decimal `json:"machine_investment"`
	Fertilizer        decimal.Decimal `json:"fertilizer"`
	Pesticide         decimal.Decimal `json:"pesticide"`
	BiologicalControl decimal.Decimal `json:"biological_control"`
	AnimalCare        decimal.Decimal `json:"animal_care"`
	OrganicControl    decimal.Decimal `json:"organic_control"`
	Operations        decimal.Decimal `json:"operations"`
	Total             decimal.Decimal `json:"total"`
}

type Result struct {
	GameID            string                 `json:"game_id"`
	PlayerID          string                 `json:"player_id"`
	Round             int                    `json:"round_number"`
	StartingCapital   decimal.Decimal        `json:"starting_capital"`
	ClosingCapital    decimal.Decimal        `json:"closing_capital"`
	ProfitOrLoss      decimal.Decimal        `json:"profit_or_loss"`
	OrganicCertified  bool                   `json:"achieved_organic_certification"`
	Weather           Weather                `json:"weather"`
	Vermin            Vermin                 `json:"vermin"`
	MachineEfficiency float64                `json:"machine_efficiency"`
	Income            IncomeBreakdown        `json:"income"`
	Expenses          ExpenseBreakdown       `json:"expenses"`
	Yields            map[Plantation]float64 `json:"yields"`
	Notes             map[string]string      `json:"notes"`
	CreatedAt         time.Time              `json:"created_at"`
}

type CreateGameInput struct {
	AdminID        string     `json:"admin_id"`
	NumberOfRounds int        `json:"number_of_rounds"`
	HumanPlayers   []string   `json:"human_players"`
	AIStrategies   []Strategy `json:"ai_strategies"`
	Seed           int64      `json:"seed"`
}

type Standing struct {
	Rank           int             `json:"rank"`
	PlayerID       string          `json:"player_id"`
	Name           string          `json:"name"`
	IsAI           bool            `json:"is_ai"`
	Round          int             `json:"round_number"`
	ClosingCapital decimal.Decimal `json:"closing_capital"`
}
