package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"soil/internal/game"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptPassword reads without echo when stdin is a terminal and falls back
// to a plain line read for piped input.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptYesNo(label string, defaultValue bool) (bool, error) {
	def := "n"
	if defaultValue {
		def = "y"
	}
	answer, err := promptChoice(label, []string{"y", "n"}, def)
	if err != nil {
		return false, err
	}
	return answer == "y", nil
}

func promptInt(label string, min, max int) (int, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(text)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min || v > max {
			printWarn(fmt.Sprintf("Value must be between %d and %d", min, max))
			continue
		}
		return v, nil
	}
}

func plantationNames() []string {
	out := make([]string, 0, len(game.Plantations))
	for _, p := range game.Plantations {
		out = append(out, string(p))
	}
	return out
}

func formatMoney(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func colorizeMoney(v decimal.Decimal) string {
	text := formatMoney(v)
	switch v.Sign() {
	case 1:
		return success.Sprint("+" + text)
	case -1:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

// colorizeLevel shades a 0-100 soil or nutrient reading.
func colorizeLevel(v float64) string {
	text := fmt.Sprintf("%6.1f", v)
	switch {
	case v >= 70:
		return success.Sprint(text)
	case v >= 40:
		return warn.Sprint(text)
	default:
		return danger.Sprint(text)
	}
}

func colorizeOutcome(o game.HarvestOutcome) string {
	text := fmt.Sprintf("%-10s", o)
	switch o {
	case game.OutcomeVeryHigh, game.OutcomeHigh:
		return success.Sprint(text)
	case game.OutcomeModerate:
		return neutral.Sprint(text)
	case game.OutcomeLow, game.OutcomeVeryLow:
		return danger.Sprint(text)
	default:
		return text
	}
}

func truncate(v string, max int) string {
	if len(v) <= max {
		return v
	}
	if max <= 3 {
		return v[:max]
	}
	return v[:max-3] + "..."
}

func renderGame(g game.Game, players []game.Player, current string) {
	accent.Printf("\n== GAME %s ==\n", g.ID)
	fmt.Printf("Status:   %s\n", g.Status)
	fmt.Printf("Round:    %d of %d\n", g.CurrentRound, g.NumberOfRounds)
	if g.CurrentRound >= 1 {
		fmt.Printf("Season:   %s, %s\n", g.WeatherFor(g.CurrentRound), g.VerminFor(g.CurrentRound))
	}
	fmt.Println()
	fmt.Printf("%-3s %-36s %-24s %-18s\n", "#", "PLAYER ID", "NAME", "KIND")
	for _, p := range players {
		kind := "human"
		if p.IsAI {
			kind = "ai " + string(p.Strategy)
		}
		marker := " "
		if p.ID == current {
			marker = "*"
		}
		fmt.Printf("%-3d %-36s %-24s %-18s %s\n", p.Number, p.ID, truncate(p.Name, 24), truncate(kind, 18), marker)
	}
	fmt.Println()
}

func renderStandings(rows []game.Standing) {
	accent.Println("\n== STANDINGS ==")
	if len(rows) == 0 {
		printInfo("No standings yet.")
		return
	}
	fmt.Printf("%-5s %-24s %-6s %6s %14s\n", "RANK", "NAME", "AI", "ROUND", "CAPITAL")
	for _, r := range rows {
		ai := "no"
		if r.IsAI {
			ai = "yes"
		}
		fmt.Printf("%-5d %-24s %-6s %6d %14s\n", r.Rank, truncate(r.Name, 24), ai, r.Round, formatMoney(r.ClosingCapital))
	}
	fmt.Println()
}

func renderField(round int, parcels []game.Parcel) {
	accent.Printf("\n== FIELD (round %d) ==\n", round)
	if len(parcels) == 0 {
		printInfo("No parcels.")
		return
	}
	fmt.Printf("%-4s %6s %6s %-16s %-16s %-8s %9s %-10s\n", "NO", "SOIL", "NUTR", "LAST", "BEFORE", "SEQ", "YIELD", "OUTCOME")
	for _, p := range parcels {
		fmt.Printf("%-4d %s %s %-16s %-16s %-8s %9.1f %s\n",
			p.Number,
			colorizeLevel(p.Soil),
			colorizeLevel(p.Nutrient),
			truncate(string(p.Current), 16),
			truncate(string(p.Previous), 16),
			p.SequenceEffect,
			p.LastYield,
			colorizeOutcome(p.LastOutcome),
		)
	}
	fmt.Println()
}

func renderResult(res game.Result) {
	accent.Printf("\n== RESULT (round %d) ==\n", res.Round)
	fmt.Printf("Season:             %s, %s\n", res.Weather, res.Vermin)
	fmt.Printf("Starting capital:   %s\n", formatMoney(res.StartingCapital))
	fmt.Printf("Profit / loss:      %s\n", colorizeMoney(res.ProfitOrLoss))
	fmt.Printf("Closing capital:    %s\n", formatMoney(res.ClosingCapital))
	fmt.Printf("Machine efficiency: %.1f\n", res.MachineEfficiency)
	certified := "no"
	if res.OrganicCertified {
		certified = "yes"
	}
	fmt.Printf("Organic certified:  %s\n", certified)

	fmt.Println()
	accent.Println("Income")
	crops := make([]string, 0, len(res.Income.Harvest))
	for p := range res.Income.Harvest {
		crops = append(crops, string(p))
	}
	sort.Strings(crops)
	fmt.Printf("%-18s %10s %12s\n", "CROP", "YIELD", "INCOME")
	for _, c := range crops {
		p := game.Plantation(c)
		fmt.Printf("%-18s %10.1f %12s\n", c, res.Yields[p], formatMoney(res.Income.Harvest[p]))
	}
	if !res.Income.AnimalProducts.IsZero() {
		fmt.Printf("%-18s %10s %12s\n", "animal products", "", formatMoney(res.Income.AnimalProducts))
	}
	fmt.Printf("%-18s %10s %12s\n", "total", "", formatMoney(res.Income.Total))

	fmt.Println()
	accent.Println("Expenses")
	e := res.Expenses
	lines := []struct {
		label string
		v     decimal.Decimal
	}{
		{"seed", e.Seed},
		{"animal investment", e.AnimalInvestment},
		{"machines", e.MachineInvestment},
		{"fertilizer", e.Fertilizer},
		{"pesticide", e.Pesticide},
		{"biocontrol", e.BiologicalControl},
		{"animal care", e.AnimalCare},
		{"organic control", e.OrganicControl},
		{"operations", e.Operations},
	}
	for _, l := range lines {
		if l.v.IsZero() {
			continue
		}
		fmt.Printf("%-18s %23s\n", l.label, formatMoney(l.v))
	}
	fmt.Printf("%-18s %23s\n", "total", formatMoney(e.Total))

	if len(res.Notes) > 0 {
		fmt.Println()
		accent.Println("Notes")
		keys := make([]string, 0, len(res.Notes))
		for k := range res.Notes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("- %-12s %s\n", k+":", res.Notes[k])
		}
	}
	fmt.Println()
}

func renderOutcome(out game.SettleOutcome) {
	if len(out.Synthesized) > 0 {
		printInfo(fmt.Sprintf("AI decisions generated for %d player(s).", len(out.Synthesized)))
	}
	switch {
	case out.Status == game.StatusFinished:
		printSuccess(fmt.Sprintf("Round %d settled. Game finished.", out.Round))
	case out.Round == 0:
		printSuccess(fmt.Sprintf("Game started. Round %d is open.", out.NextRound))
	default:
		printSuccess(fmt.Sprintf("Round %d settled. Round %d is open.", out.Round, out.NextRound))
	}
	if len(out.Results) == 0 {
		return
	}
	fmt.Printf("%-36s %14s %14s\n", "PLAYER", "P/L", "CAPITAL")
	for _, r := range out.Results {
		fmt.Printf("%-36s %14s %14s\n", r.PlayerID, colorizeMoney(r.ProfitOrLoss), formatMoney(r.ClosingCapital))
	}
	fmt.Println()
}
