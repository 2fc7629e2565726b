package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/20223096/mbti-app/internal/config"
	"github.com/20223096/mbti-app/internal/pipeline"
	"github.com/20223096/mbti-app/internal/profile"
	"github.com/20223096/mbti-app/internal/storage"
)

var errTurnFailed = errors.New("turn failed")

// --- send ---

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send a single message and print the reply",
	Long: `Send a single message and print the reply.

The stored traits profile is used and updated, so consecutive sends with the
same --mbti build on each other.

Examples:
  mbtichat send --mbti ENFP "she replied with just a thumbs up"
  mbtichat send --json "what should I text back?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.pipe.SetSelection(selectionFromFlags(cmd)); err != nil {
			return err
		}

		res, err := a.pipe.Submit(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
		} else {
			writeTurn(out, res.Reply)
			writeAnalysis(out, res)
		}
		if res.Outcome == pipeline.OutcomeFailed {
			return errTurnFailed
		}
		return nil
	},
}

func init() {
	addSelectionFlags(sendCmd)
	sendCmd.Flags().Bool("json", false, "print the full turn result as JSON")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or reset the stored traits profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored traits profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p := a.profiles.CurrentSnapshot()
		if p == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No traits profile stored.")
			return nil
		}
		return writeProfile(cmd.OutOrStdout(), p, format)
	},
}

var profileResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the stored traits profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.profiles.Reset(); err != nil {
			return err
		}
		printSuccess("Traits profile cleared (slot %s)", profile.SlotName)
		return nil
	},
}

func init() {
	profileShowCmd.Flags().String("format", "json", "output format: json or yaml")
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileResetCmd)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the journal of past exchanges",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent exchanges",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		exchanges, err := a.store.ListExchanges(limit, 0)
		if err != nil {
			return err
		}
		if len(exchanges) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No exchanges recorded.")
			return nil
		}
		for _, e := range exchanges {
			fmt.Fprintln(cmd.OutOrStdout(), formatExchangeLine(e))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single exchange",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.store.GetExchange(args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("exchange %s not found", args[0])
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded exchanges",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL recorded exchanges. Use --confirm to proceed.")
			return nil
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.DeleteExchanges()
		if err != nil {
			return err
		}
		printSuccess("Deleted %d exchanges", n)
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of exchanges to list")
	historyClearCmd.Flags().Bool("confirm", false, "confirm deletion")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
}

// formatExchangeLine renders one journal entry for `history list`.
func formatExchangeLine(e storage.Exchange) string {
	label := e.Label
	if label == "" {
		label = "-"
	}
	return fmt.Sprintf("%s  %s  %-4s  %-7s  %s",
		colorize(colorCyan, e.ID),
		e.CreatedAt.Local().Format("2006-01-02 15:04"),
		label,
		e.Outcome,
		truncateRunes(e.UserText, 60),
	)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Source: %s\n", config.Source())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a configuration value",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.ValidKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Restore a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
