package cli

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/kobzevvv/vibe-sec/internal/audit"
	"github.com/kobzevvv/vibe-sec/internal/config"
)

var (
	logLast       int
	logFilterTier string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the blocked-action log",
	Long: `View the append-only log of blocked actions.

Examples:
  vibesec log                  # all entries
  vibesec log --last 20        # last 20 entries
  vibesec log --tier heuristic # only heuristic-tier blocks`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().StringVar(&logFilterTier, "tier", "", "Filter by tier (irrevocable, heuristic, escalation)")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(allowlistPath, blockedPath, telemetryPath)
	if err != nil {
		return err
	}

	entries, err := audit.ReadBlocked(cfg.BlockedPath)
	if err != nil {
		return err
	}

	if logFilterTier != "" {
		var filtered []audit.BlockedEntry
		for _, e := range entries {
			if e.Tier == logFilterTier {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if logLast > 0 && logLast < len(entries) {
		entries = entries[len(entries)-logLast:]
	}

	if len(entries) == 0 {
		fmt.Println("No blocked actions recorded.")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s  [%s] %s\n", e.Timestamp, e.Tier, e.RuleID)
		fmt.Printf("    reason:  %s\n", e.Reason)
		fmt.Printf("    subject: %s\n", truncate(e.Subject, 120))
		if e.SuggestedPattern != "" {
			fmt.Printf("    pattern: %s\n", e.SuggestedPattern)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
