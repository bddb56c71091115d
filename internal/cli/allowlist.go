package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kobzevvv/vibe-sec/internal/allowlist"
	"github.com/kobzevvv/vibe-sec/internal/audit"
	"github.com/kobzevvv/vibe-sec/internal/config"
)

var allowlistCmd = &cobra.Command{
	Use:   "allowlist",
	Short: "Manage the trust patterns that suppress bypassable detections",
	Long: `The allowlist is a plain text file, one regular expression per line.
A pattern that matches an action's textual form suppresses heuristic- and
escalation-tier detections for that action. Irrevocable detections are never
suppressed.`,
}

var allowlistShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current allowlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		patterns := store.Patterns()
		if len(patterns) == 0 {
			fmt.Printf("Allowlist is empty (%s).\n", cfg.AllowlistPath)
			return nil
		}
		for _, p := range patterns {
			fmt.Println(p)
		}
		return nil
	},
}

var allowlistAddCmd = &cobra.Command{
	Use:   "add <pattern>",
	Short: "Append a trust pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Append(args[0]); err != nil {
			return err
		}
		fmt.Printf("Added pattern: %s\n", args[0])
		return nil
	},
}

var allowlistClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every trust pattern",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("Allowlist cleared.")
		return nil
	},
}

var allowlistLastCmd = &cobra.Command{
	Use:   "last",
	Short: "Replay the most recent block and offer to trust it",
	RunE:  allowlistLastCommand,
}

func init() {
	allowlistCmd.AddCommand(allowlistShowCmd, allowlistAddCmd, allowlistClearCmd, allowlistLastCmd)
	rootCmd.AddCommand(allowlistCmd)
}

func openStore() (*allowlist.Store, *config.Config, error) {
	cfg, err := config.Load(allowlistPath, blockedPath, telemetryPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := allowlist.Load(cfg.AllowlistPath)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

// allowlistLastCommand is the "allow-last" workflow: show the most recent
// blocked action and, when a suggested pattern exists, prompt to append it.
func allowlistLastCommand(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}

	entries, err := audit.ReadBlocked(cfg.BlockedPath)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Nothing has been blocked yet.")
		return nil
	}
	last := entries[len(entries)-1]

	fmt.Printf("Last blocked action (%s):\n", last.Timestamp)
	fmt.Printf("  tier:    %s\n", last.Tier)
	fmt.Printf("  rule:    %s\n", last.RuleID)
	fmt.Printf("  reason:  %s\n", last.Reason)
	fmt.Printf("  subject: %s\n", last.Subject)

	if last.SuggestedPattern == "" {
		fmt.Println("This detection is irrevocable; no pattern can trust it.")
		return nil
	}

	fmt.Printf("  suggested pattern: %s\n", last.SuggestedPattern)

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Printf("Run interactively, or add it directly:\n  vibesec allowlist add '%s'\n", last.SuggestedPattern)
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Add this pattern to the allowlist? [y/n]: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		switch strings.TrimSpace(strings.ToLower(input)) {
		case "y", "yes":
			if err := store.Append(last.SuggestedPattern); err != nil {
				return err
			}
			fmt.Println("Pattern added.")
			return nil
		case "n", "no":
			fmt.Println("Not added.")
			return nil
		default:
			fmt.Println("Please answer y or n.")
		}
	}
}
