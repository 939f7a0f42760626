package game

import "fmt"

// Progression is a player's carried-over state after this round's decisions.
type Progression struct {
	MachineEfficiency float64
	OrganicCertified  bool
	Notes             map[string]string
}

// Progress applies this round's investment and organic decision. It runs before
// any parcel is processed so the investment affects this round's harvest.
func (r *Rules) Progress(prevEfficiency float64, wasCertified bool, d RoundDecisions) Progression {
	eff := r.NextMachineEfficiency(prevEfficiency, d.MachineInvestment)
	certified, organicNote := NextOrganicStatus(d, wasCertified)
	return Progression{
		MachineEfficiency: eff,
		OrganicCertified:  certified,
		Notes: map[string]string{
			explanationKeyMachine: fmt.Sprintf("machine efficiency %.1f -> %.1f (investment level %d)", prevEfficiency, eff, d.MachineInvestment),
			explanationKeyOrganic: organicNote,
		},
	}
}

func (r *Rules) NextMachineEfficiency(old float64, level int) float64 {
	if level < 0 {
		level = 0
	}
	return clamp(r.Machine.Min, r.Machine.Max, old+float64(level)*r.Machine.GainPerUnit-r.Machine.Depreciation)
}

// NextOrganicStatus is certified only when certification is attempted without
// conventional fertilizer or pesticide in the same round.
func NextOrganicStatus(d RoundDecisions, wasCertified bool) (bool, string) {
	switch {
	case d.AttemptOrganic && !d.Fertilize && !d.Pesticide:
		if wasCertified {
			return true, "organic certification renewed"
		}
		return true, "organic certification granted"
	case d.AttemptOrganic:
		return false, "organic certification failed: conventional fertilizer or pesticide is incompatible with organic farming"
	case wasCertified:
		return false, "organic certification lapsed because it was not renewed"
	default:
		return false, "farm is managed conventionally"
	}
}
