package game

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultParcelCount    = 40
	MaxRounds             = 30
	MoneyPlaces           = 2
	explanationKeyOrganic = "organic_certification"
	explanationKeyMachine = "machine_efficiency"
)

var (
	ErrGameNotFound          = errors.New("game not found")
	ErrPlayerNotFound        = errors.New("player not found")
	ErrGameFinished          = errors.New("game already finished")
	ErrWrongRound            = errors.New("round is not the current round")
	ErrAlreadySubmitted      = errors.New("decisions already submitted for this round")
	ErrAwaitingSubmissions   = errors.New("round is awaiting submissions")
	ErrSettlementInProgress  = errors.New("settlement already in progress for this game")
	ErrMissingFieldState     = errors.New("field state missing")
	ErrMissingPreviousResult = errors.New("previous result missing")
	ErrMissingDecisions      = errors.New("submitted decisions missing")
	ErrResultNotFound        = errors.New("result not found")
	ErrInvalidDecisions      = errors.New("invalid decisions")
	ErrInvalidGame           = errors.New("invalid game setup")
	ErrTxConflict            = errors.New("transaction conflict, retry")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrPlayerClaimed         = errors.New("player already claimed by another user")
)

// SettlementError carries enough context for a caller to retry a halted round.
type SettlementError struct {
	GameID   string
	Round    int
	PlayerID string
	Phase    string
	Err      error
}

func (e *SettlementError) Error() string {
	if e.PlayerID == "" {
		return fmt.Sprintf("settle game %s round %d: %s: %v", e.GameID, e.Round, e.Phase, e.Err)
	}
	return fmt.Sprintf("settle game %s round %d player %s: %s: %v", e.GameID, e.Round, e.PlayerID, e.Phase, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

func ParsePlantation(s string) (Plantation, error) {
	p := Plantation(strings.ToLower(strings.TrimSpace(s)))
	if p == PlantationNone || p.Valid() {
		return p, nil
	}
	return PlantationNone, fmt.Errorf("unknown plantation %q", s)
}

func (p *Plantation) UnmarshalText(b []byte) error {
	v, err := ParsePlantation(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func ParseWeather(s string) (Weather, error) {
	w := Weather(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Weathers {
		if w == known {
			return w, nil
		}
	}
	return WeatherNormal, fmt.Errorf("unknown weather %q", s)
}

func (w *Weather) UnmarshalText(b []byte) error {
	v, err := ParseWeather(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

func ParseVermin(s string) (Vermin, error) {
	v := Vermin(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Vermins {
		if v == known {
			return v, nil
		}
	}
	return VerminNone, fmt.Errorf("unknown vermin %q", s)
}

func (v *Vermin) UnmarshalText(b []byte) error {
	parsed, err := ParseVermin(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseStrategy maps an empty or unknown name to the balanced strategy.
func ParseStrategy(s string) Strategy {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Strategies {
		if st == known {
			return st
		}
	}
	return StrategyBalanced
}

func (s *Strategy) UnmarshalText(b []byte) error {
	*s = ParseStrategy(string(b))
	return nil
}

// ValidateDecisions checks a submission against the player's field before it is stored.
func ValidateDecisions(rules *Rules, d RoundDecisions, field []Parcel) error {
	if d.MachineInvestment < 0 || d.MachineInvestment > rules.Machine.MaxInvestmentLevel {
		return fmt.Errorf("%w: machine investment level must be between 0 and %d", ErrInvalidDecisions, rules.Machine.MaxInvestmentLevel)
	}
	for _, p := range field {
		choice, ok := d.Plantations[p.Number]
		if !ok || choice == PlantationNone {
			return fmt.Errorf("%w: parcel %d has no plantation", ErrInvalidDecisions, p.Number)
		}
		if !choice.Valid() {
			return fmt.Errorf("%w: parcel %d: unknown plantation %q", ErrInvalidDecisions, p.Number, choice)
		}
	}
	if len(d.Plantations) != len(field) {
		return fmt.Errorf("%w: %d plantations for %d parcels", ErrInvalidDecisions, len(d.Plantations), len(field))
	}
	return nil
}

// DefaultDecisions keeps every parcel on its current plantation with all inputs off.
func DefaultDecisions(field []Parcel) RoundDecisions {
	d := RoundDecisions{Plantations: make(map[int]Plantation, len(field))}
	for _, p := range field {
		choice := p.Current
		if choice == PlantationNone {
			choice = Fallow
		}
		d.Plantations[p.Number] = choice
	}
	return d
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(MoneyPlaces)
}

func clamp(lo, hi, v float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
