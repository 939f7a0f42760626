package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "soil/internal/cli"
	"soil/internal/config"
	"soil/internal/game"
	"soil/internal/syncq"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "soil",
		Short:        "Soil farming simulation client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newGameCmd(&apiBase),
		newFieldCmd(&apiBase),
		newSubmitCmd(&apiBase),
		newResultCmd(&apiBase),
		newSyncCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func saveSignedIn(prev cl.Session, access, refresh, email, userID string) error {
	prev.AccessToken = access
	prev.RefreshToken = refresh
	prev.Email = email
	prev.UserID = userID
	return cl.SaveSession(prev)
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := newClient(apiBase).Signup(ctx, email, password)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify email, then run `soil login`.")
				return nil
			}
			prev, _ := cl.LoadSession()
			if err := saveSignedIn(prev, session.AccessToken, session.RefreshToken, session.User.Email, session.User.ID); err != nil {
				return err
			}
			printSuccess("Signup complete. Session saved.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh {
				return refreshLogin(cmd, apiBase)
			}
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := newClient(apiBase).Login(ctx, email, password)
			if err != nil {
				return err
			}
			prev, _ := cl.LoadSession()
			if err := saveSignedIn(prev, session.AccessToken, session.RefreshToken, session.User.Email, session.User.ID); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "renew the stored session with its refresh token")
	return cmd
}

func refreshLogin(cmd *cobra.Command, apiBase *string) error {
	prev, err := cl.LoadSession()
	if err != nil {
		return err
	}
	if strings.TrimSpace(prev.RefreshToken) == "" {
		return errors.New("no stored session; run `soil login` first")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	session, err := newClient(apiBase).Refresh(ctx, prev.RefreshToken)
	if err != nil {
		return err
	}
	email := session.User.Email
	if email == "" {
		email = prev.Email
	}
	if err := saveSignedIn(prev, session.AccessToken, session.RefreshToken, email, session.User.ID); err != nil {
		return err
	}
	printSuccess("Session renewed.")
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newGameCmd(apiBase *string) *cobra.Command {
	gameCmd := &cobra.Command{
		Use:   "game",
		Short: "Create, inspect and settle games",
	}
	gameCmd.AddCommand(
		newGameCreateCmd(apiBase),
		newGameShowCmd(apiBase),
		newGameUseCmd(apiBase),
		newGameSettleCmd(apiBase),
		newGameStandingsCmd(apiBase),
	)
	return gameCmd
}

func newGameCreateCmd(apiBase *string) *cobra.Command {
	var (
		rounds int
		humans []string
		ai     []string
		seed   int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a game and select its first human player",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			if rounds == 0 {
				if rounds, err = promptInt("Number of rounds", 1, game.MaxRounds); err != nil {
					return err
				}
			}
			strategies := make([]game.Strategy, 0, len(ai))
			for _, s := range ai {
				strategies = append(strategies, game.ParseStrategy(s))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			created, err := newClient(apiBase).CreateGame(ctx, sess.AccessToken, rounds, humans, strategies, seed)
			if err != nil {
				return err
			}
			sess.GameID = created.Game.ID
			sess.PlayerID = ""
			for _, p := range created.Players {
				if !p.IsAI {
					sess.PlayerID = p.ID
					break
				}
			}
			if err := cl.SaveSession(sess); err != nil {
				return err
			}
			renderGame(created.Game, created.Players, sess.PlayerID)
			printSuccess("Game created. Run `soil game settle` to open round 1.")
			return nil
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", 0, "number of rounds")
	cmd.Flags().StringArrayVar(&humans, "player", nil, "human player name (repeatable)")
	cmd.Flags().StringArrayVar(&ai, "ai", nil, "AI strategy: profit_maximizer, eco_conscious, random_explorer, balanced (repeatable)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for the weather and vermin draw (0 picks one)")
	return cmd
}

// gameFromArgs returns the game id given on the command line, or the selected one.
func gameFromArgs(sess cl.Session, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	if sess.GameID == "" {
		return "", errors.New("no game selected; pass a game id or run `soil game use`")
	}
	return sess.GameID, nil
}

func newGameShowCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [game-id]",
		Short: "Show game status, players and standings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			gameID, err := gameFromArgs(sess, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			g, err := client.Game(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			players, err := client.Players(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			renderGame(g, players, sess.PlayerID)
			if g.Status == game.StatusPending {
				return nil
			}
			standings, err := client.Standings(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			renderStandings(standings)
			return nil
		},
	}
}

func newGameUseCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "use <game-id> <player-id>",
		Short: "Select the game and player later commands act for",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			gameID, playerID := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			players, err := client.Players(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			var found *game.Player
			for i := range players {
				if players[i].ID == playerID {
					found = &players[i]
				}
			}
			if found == nil {
				return fmt.Errorf("player %s is not part of game %s", playerID, gameID)
			}
			if found.IsAI {
				printWarn("That player is AI controlled; its decisions are generated at settlement.")
			} else if found.OwnerID == "" {
				if _, err := client.ClaimPlayer(ctx, sess.AccessToken, gameID, playerID); err != nil {
					return fmt.Errorf("claim player: %w", err)
				}
				printInfo(fmt.Sprintf("Claimed seat %d.", found.Number))
			}
			sess.GameID, sess.PlayerID = gameID, playerID
			if err := cl.SaveSession(sess); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Now playing %s in game %s.", found.Name, gameID))
			return nil
		},
	}
}

func newGameSettleCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "settle [game-id]",
		Short: "Start the game or settle the current round",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			gameID, err := gameFromArgs(sess, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Settle(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			renderOutcome(out)
			return nil
		},
	}
}

func newGameStandingsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "standings [game-id]",
		Short: "Rank players by closing capital",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			gameID, err := gameFromArgs(sess, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			rows, err := newClient(apiBase).Standings(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			renderStandings(rows)
			return nil
		},
	}
}

// currentRound resolves --round, defaulting to the game's open round.
func currentRound(ctx context.Context, client *cl.Client, sess cl.Session, flagRound int) (int, game.Game, error) {
	g, err := client.Game(ctx, sess.AccessToken, sess.GameID)
	if err != nil {
		return 0, game.Game{}, err
	}
	if flagRound > 0 {
		return flagRound, g, nil
	}
	return g.CurrentRound, g, nil
}

func newFieldCmd(apiBase *string) *cobra.Command {
	var round int
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Show your parcels for a round",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			if err := sess.RequireGame(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			r, _, err := currentRound(ctx, client, sess, round)
			if err != nil {
				return err
			}
			parcels, err := client.Field(ctx, sess.AccessToken, sess.GameID, sess.PlayerID, r)
			if err != nil {
				return err
			}
			renderField(r, parcels)
			return nil
		},
	}
	cmd.Flags().IntVar(&round, "round", 0, "round number (defaults to the open round)")
	return cmd
}

func newSubmitCmd(apiBase *string) *cobra.Command {
	var (
		round      int
		all        string
		parcels    []string
		fertilize  bool
		pesticide  bool
		biocontrol bool
		organic    bool
		machines   int
		queueOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit this round's decisions",
		Long: "Submit this round's decisions. Without --all or --parcel the command prompts.\n" +
			"Parcel assignments look like 3=potato or 1-10=wheat.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			if err := sess.RequireGame(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			r, g, err := currentRound(ctx, client, sess, round)
			if err != nil {
				return err
			}
			if g.Status != game.StatusActive {
				return fmt.Errorf("game is %s; nothing to submit", g.Status)
			}
			field, err := client.Field(ctx, sess.AccessToken, sess.GameID, sess.PlayerID, r)
			if err != nil {
				return err
			}

			d := game.DefaultDecisions(field)
			if all == "" && len(parcels) == 0 {
				if err := promptDecisions(&d, field); err != nil {
					return err
				}
			} else {
				if err := applyPlantations(&d, field, all, parcels); err != nil {
					return err
				}
				d.Fertilize, d.Pesticide, d.BiologicalControl, d.AttemptOrganic = fertilize, pesticide, biocontrol, organic
				d.MachineInvestment = machines
			}

			command, err := cl.SubmitCommand(sess.GameID, sess.PlayerID, r, d)
			if err != nil {
				return err
			}
			if queueOnly {
				return queueCommand(command)
			}
			if err := client.Send(ctx, sess.AccessToken, command); err != nil {
				return queueOnNetworkError(err, command)
			}
			printSuccess(fmt.Sprintf("Decisions for round %d submitted.", r))
			return nil
		},
	}
	cmd.Flags().IntVar(&round, "round", 0, "round number (defaults to the open round)")
	cmd.Flags().StringVar(&all, "all", "", "plantation for every parcel")
	cmd.Flags().StringArrayVar(&parcels, "parcel", nil, "parcel assignment such as 3=potato or 1-10=wheat (repeatable)")
	cmd.Flags().BoolVar(&fertilize, "fertilize", false, "apply fertilizer")
	cmd.Flags().BoolVar(&pesticide, "pesticide", false, "apply pesticide")
	cmd.Flags().BoolVar(&biocontrol, "biocontrol", false, "use biological pest control")
	cmd.Flags().BoolVar(&organic, "organic", false, "attempt organic certification")
	cmd.Flags().IntVar(&machines, "machines", 0, "machine investment level")
	cmd.Flags().BoolVar(&queueOnly, "queue", false, "queue locally instead of sending; replay with `soil sync`")
	return cmd
}

func promptDecisions(d *game.RoundDecisions, field []game.Parcel) error {
	base, err := promptChoice("Plantation for all parcels", plantationNames(), string(game.Wheat))
	if err != nil {
		return err
	}
	for {
		fmt.Printf("Overrides, e.g. 1-5=fallow 12=potato (blank for none): ")
		line, err := stdinReader.ReadString('\n')
		if err != nil {
			return err
		}
		if err := applyPlantations(d, field, base, strings.Fields(line)); err != nil {
			printWarn(err.Error())
			continue
		}
		break
	}
	if d.Fertilize, err = promptYesNo("Fertilize", false); err != nil {
		return err
	}
	if d.Pesticide, err = promptYesNo("Pesticide", false); err != nil {
		return err
	}
	if d.BiologicalControl, err = promptYesNo("Biological control", false); err != nil {
		return err
	}
	if d.AttemptOrganic, err = promptYesNo("Attempt organic certification", false); err != nil {
		return err
	}
	d.MachineInvestment, err = promptInt("Machine investment level", 0, game.DefaultRules().Machine.MaxInvestmentLevel)
	return err
}

// applyPlantations sets every parcel to all (when given) and then applies the
// per-parcel assignments in order.
func applyPlantations(d *game.RoundDecisions, field []game.Parcel, all string, assignments []string) error {
	known := make(map[int]struct{}, len(field))
	for _, p := range field {
		known[p.Number] = struct{}{}
	}
	if strings.TrimSpace(all) != "" {
		p, err := game.ParsePlantation(all)
		if err != nil {
			return err
		}
		for n := range known {
			d.Plantations[n] = p
		}
	}
	for _, a := range assignments {
		lhs, rhs, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("invalid assignment %q, want parcel=plantation", a)
		}
		p, err := game.ParsePlantation(rhs)
		if err != nil {
			return err
		}
		if p == game.PlantationNone {
			return fmt.Errorf("invalid assignment %q: missing plantation", a)
		}
		from, to, err := parcelRange(lhs)
		if err != nil {
			return fmt.Errorf("invalid assignment %q: %w", a, err)
		}
		for n := from; n <= to; n++ {
			if _, ok := known[n]; !ok {
				return fmt.Errorf("parcel %d does not exist", n)
			}
			d.Plantations[n] = p
		}
	}
	return nil
}

func parcelRange(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	lo, hi, isRange := strings.Cut(s, "-")
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("parcel number %q", lo)
	}
	if !isRange {
		return from, from, nil
	}
	to, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || to < from {
		return 0, 0, fmt.Errorf("parcel range %q", s)
	}
	return from, to, nil
}

func newResultCmd(apiBase *string) *cobra.Command {
	var round int
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Show the settled result of a round",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			if err := sess.RequireGame(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			r := round
			if r == 0 {
				g, err := client.Game(ctx, sess.AccessToken, sess.GameID)
				if err != nil {
					return err
				}
				r = g.CurrentRound - 1
				if g.Status == game.StatusFinished {
					r = g.CurrentRound
				}
			}
			if r < 1 {
				printInfo("No round has been settled yet.")
				return nil
			}
			res, err := client.Result(ctx, sess.AccessToken, sess.GameID, sess.PlayerID, r)
			if err != nil {
				return err
			}
			renderResult(res)
			return nil
		},
	}
	cmd.Flags().IntVar(&round, "round", 0, "round number (defaults to the last settled round)")
	return cmd
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay locally queued submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			delivered, dropped, err := syncq.Replay(ctx, func(ctx context.Context, c syncq.Command) error {
				err := client.Send(ctx, sess.AccessToken, c)
				if errors.Is(err, syncq.ErrPermanent) {
					printError(fmt.Sprintf("Dropped %s: %v", c.Label, err))
				}
				return err
			})
			remaining := len(queue) - delivered - dropped
			if err != nil {
				printWarn(fmt.Sprintf("Sync stopped: %v", err))
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d dropped=%d remaining=%d", delivered, dropped, remaining))
			return nil
		},
	}
}

func queueCommand(c syncq.Command) error {
	if err := syncq.Push(c); err != nil {
		return err
	}
	printWarn(fmt.Sprintf("Queued %s. Run `soil sync` when the API is reachable.", c.Label))
	return nil
}

// queueOnNetworkError keeps a submission that never reached the API.
// Answers from the API are returned as errors.
func queueOnNetworkError(err error, c syncq.Command) error {
	var apiErr *cl.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	printError(fmt.Sprintf("API unreachable: %v", err))
	return queueCommand(c)
}
