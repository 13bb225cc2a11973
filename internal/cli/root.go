package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/catering-cart/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	StateDir    string
	RedisAddr   string
	Backend     string
	Format      string // "json" | "text"
	QuietPeriod time.Duration
	Timeout     time.Duration
	Verbose     bool

	cfg config.Client
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the cartctl root command. Flag defaults come from
// the environment.
func NewRootCommand() *cobra.Command {
	cfg := config.LoadClient()
	opts := &RootOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:   "cartctl",
		Short: "Manage the catering order cart",
		Long: `cartctl keeps a persistent catering cart and mirrors it to the
customer's draft order on the backend.

Every invocation loads the cart from the state directory, reconciles with
the backend when the cart is empty, applies the command and flushes the
pending draft-order sync before exiting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.StateDir, "state-dir", cfg.StateDir, "directory holding the persisted cart")
	cmd.PersistentFlags().StringVar(&opts.RedisAddr, "redis-addr", cfg.RedisAddr, "keep the cart in redis instead of the state directory")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", cfg.BackendURL, "draft-order backend base URL")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.QuietPeriod, "quiet-period", cfg.QuietPeriod, "debounce window before a draft-order sync")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", cfg.HTTPTimeout, "backend request timeout (0 for none)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	// Add subcommands
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewCustomerCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))

	return cmd
}
