// Package commands implements the lowpansim CLI's cobra command tree.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/adaptation"
)

var v = viper.New()

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "lowpansim",
	Short: "6LoWPAN HC1 adaptation-layer simulator",
	Long: `lowpansim drives the 6LoWPAN adaptation device (RFC 4944 fragmentation
plus HC1 header compression) over an in-memory pair of link devices, so the
compression, fragmentation, and reassembly paths can be exercised without a
real radio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Int("mtu", 102, "link-layer MTU in octets")
	flags.Int("reassembly-list-size", 0, "max concurrent reassembly entries (0 = unbounded)")
	flags.Duration("fragment-timeout", 180*time.Second, "reassembly entry timeout")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	v.SetEnvPrefix("LOWPANSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{"mtu", "reassembly-list-size", "fragment-timeout", "log-level"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(roundTripCmd)
	rootCmd.AddCommand(fragmentCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// sessionLogger builds a slog.Logger tagged with a per-invocation
// correlation ID so Tx/Rx/Drop trace-hook lines from a single run can be
// grepped out of a shared log stream.
func sessionLogger() (*slog.Logger, string) {
	level := parseLevel(v.GetString("log-level"))
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	sessionID := uuid.NewString()
	return slog.New(handler).With("session", sessionID), sessionID
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadAdaptationConfig builds an adaptation.Config from the bound
// persistent flags/environment, applying the spec defaults for anything
// left unset.
func loadAdaptationConfig() adaptation.Config {
	return adaptation.Config{
		Mtu:                        v.GetInt("mtu"),
		FragmentReassemblyListSize: v.GetInt("reassembly-list-size"),
		FragmentExpirationTimeout:  v.GetDuration("fragment-timeout"),
	}
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
