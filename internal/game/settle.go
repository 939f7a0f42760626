package game

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// PlayerRound is the input bundle gathered for one player before settlement.
type PlayerRound struct {
	Game      Game
	Player    Player
	Round     int
	Decisions RoundDecisions
	Field     []Parcel
	// Previous is nil in round 1.
	Previous *Result
}

// SettlePlayer runs progression, the parcel engine and the ledger for one player.
// It returns the round's Result and the field state for the next round.
func (r *Rules) SettlePlayer(in PlayerRound) (Result, []Parcel, error) {
	if len(in.Field) == 0 {
		return Result{}, nil, ErrMissingFieldState
	}

	starting := money(r.Setup.StartingCapital)
	prevEfficiency := r.Machine.Initial
	wasCertified := false
	if in.Previous != nil {
		starting = in.Previous.ClosingCapital
		prevEfficiency = in.Previous.MachineEfficiency
		wasCertified = in.Previous.OrganicCertified
	}

	progress := r.Progress(prevEfficiency, wasCertified, in.Decisions)
	weather := in.Game.WeatherFor(in.Round)
	vermin := in.Game.VerminFor(in.Round)

	field := make([]Parcel, len(in.Field))
	copy(field, in.Field)
	sort.Slice(field, func(i, j int) bool { return field[i].Number < field[j].Number })

	animals := 0
	for _, p := range field {
		choice, ok := in.Decisions.Plantations[p.Number]
		if !ok || !choice.Valid() {
			return Result{}, nil, fmt.Errorf("%w: parcel %d has no valid plantation", ErrInvalidDecisions, p.Number)
		}
		if choice == AnimalHusbandry {
			animals++
		}
	}

	notes := map[string]string{}
	for k, v := range progress.Notes {
		notes[k] = v
	}
	next := make([]Parcel, 0, len(field))
	for _, p := range field {
		after, parcelNotes := r.ProcessParcel(ParcelInput{
			Before:        p,
			Decisions:     in.Decisions,
			Weather:       weather,
			Vermin:        vermin,
			Machine:       progress.MachineEfficiency,
			Organic:       progress.OrganicCertified,
			Plantation:    in.Decisions.Plantations[p.Number],
			AnimalParcels: animals,
			TotalParcels:  len(field),
		})
		for k, v := range parcelNotes {
			notes[fmt.Sprintf("parcel_%02d_%s", p.Number, k)] = v
		}
		next = append(next, after)
	}

	income := r.HarvestIncome(next, progress.OrganicCertified)
	expenses := r.Expenses(next, in.Decisions, progress.OrganicCertified, wasCertified, progress.MachineEfficiency)
	profit := income.Total.Sub(expenses.Total)
	notes["weather"] = fmt.Sprintf("round %d weather: %s", in.Round, weather)
	notes["vermin"] = fmt.Sprintf("round %d vermin: %s", in.Round, vermin)
	notes["finance"] = fmt.Sprintf("income %s - expenses %s = %s", income.Total.StringFixed(MoneyPlaces), expenses.Total.StringFixed(MoneyPlaces), profit.StringFixed(MoneyPlaces))

	result := Result{
		GameID:            in.Game.ID,
		PlayerID:          in.Player.ID,
		Round:             in.Round,
		StartingCapital:   starting,
		ClosingCapital:    starting.Add(profit),
		ProfitOrLoss:      profit,
		OrganicCertified:  progress.OrganicCertified,
		Weather:           weather,
		Vermin:            vermin,
		MachineEfficiency: progress.MachineEfficiency,
		Income:            income,
		Expenses:          expenses,
		Yields:            totalYields(next),
		Notes:             notes,
	}
	return result, next, nil
}

// InitialField is the round-0 field every player starts from.
func (r *Rules) InitialField() []Parcel {
	field := make([]Parcel, 0, r.Setup.ParcelCount)
	for i := 1; i <= r.Setup.ParcelCount; i++ {
		field = append(field, Parcel{
			Number:         i,
			Soil:           r.Setup.InitialSoil,
			Nutrient:       r.Setup.InitialNutrient,
			Current:        Fallow,
			SequenceEffect: SequenceNone,
			LastOutcome:    OutcomeNone,
		})
	}
	return field
}

func capitalOf(res *Result, rules *Rules) decimal.Decimal {
	if res == nil {
		return money(rules.Setup.StartingCapital)
	}
	return res.ClosingCapital
}
