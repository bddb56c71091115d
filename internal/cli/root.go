// Package cli wires the gate's commands: the hook entry point consumed by
// the host agent, and the operator surface for the allowlist and the
// blocked log.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	allowlistPath string
	blockedPath   string
	telemetryPath string
)

var rootCmd = &cobra.Command{
	Use:   "vibesec",
	Short: "vibe-sec - last-line-of-defense gate for coding agents",
	Long: `vibe-sec sits between an autonomous coding agent and the operating
system. Before every shell command or file write, the agent's hook sends the
proposed action here; vibe-sec decides allow or deny, explains denials, and
suggests a remediation. The threat model is indirect prompt injection:
instructions smuggled into content the agent reads.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&allowlistPath, "allowlist", "", "Path to allowlist file (default: ~/.vibesec/allowlist.txt)")
	rootCmd.PersistentFlags().StringVar(&blockedPath, "blocked-log", "", "Path to blocked log file (default: ~/.vibesec/blocked.jsonl)")
	rootCmd.PersistentFlags().StringVar(&telemetryPath, "telemetry", "", "Path to telemetry queue file (default: ~/.vibesec/telemetry-queue.jsonl)")
}

func Execute() error {
	return rootCmd.Execute()
}
