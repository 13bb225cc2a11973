package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/catering-cart/internal/domain/cart"
	"github.com/example/catering-cart/internal/session"
)

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr()}
}

func parseProductID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q: must be a positive integer", raw)
	}
	return id, nil
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, newFormatter(opts, cmd), func(*session.Session) error { return nil })
		},
	}
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Name        string
	DisplayName string
	Image       string
	Price       float64
	Quantity    int
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Long: `Add a product to the cart. Adding a product that is already in the
cart increases its quantity.

Example:
  cartctl add 5 --name "Vegetable lasagne" --price 20 --qty 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			item := cart.LineItem{
				ProductID:   id,
				ProductName: opts.Name,
				DisplayName: opts.DisplayName,
				Image:       opts.Image,
				UnitPrice:   opts.Price,
			}
			return withSession(cmd.Context(), rootOpts, newFormatter(rootOpts, cmd), func(s *session.Session) error {
				return s.AddItem(cmd.Context(), item, opts.Quantity)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "product name")
	cmd.Flags().StringVar(&opts.DisplayName, "display-name", "", "name shown instead of the product name")
	cmd.Flags().StringVar(&opts.Image, "image", "", "product image URL")
	cmd.Flags().Float64Var(&opts.Price, "price", 0, "unit price")
	cmd.Flags().IntVarP(&opts.Quantity, "qty", "q", 1, "quantity to add")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			out := newFormatter(opts, cmd)
			return withSession(cmd.Context(), opts, out, func(s *session.Session) error {
				removed, err := s.RemoveItem(cmd.Context(), id)
				if err == nil && !removed {
					out.Warn("product %d is not in the cart", id)
				}
				return err
			})
		},
	}
}

// NewSetCommand creates the set command.
func NewSetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Set the quantity of a product; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[1], err)
			}
			out := newFormatter(opts, cmd)
			return withSession(cmd.Context(), opts, out, func(s *session.Session) error {
				found, err := s.SetQuantity(cmd.Context(), id, qty)
				if err == nil && !found {
					out.Warn("product %d is not in the cart", id)
				}
				return err
			})
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart and delete its draft order",
		Long: `Empty the cart and delete its draft order. Until the next add, later
runs do not reload a draft from the backend into the cleared cart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, newFormatter(opts, cmd), func(s *session.Session) error {
				return s.Clear(cmd.Context())
			})
		},
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push the cart to the draft order now",
		Long: `Push the cart to the customer's draft order now. A failed sync is not
retried automatically; run this command to retry it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.session.Start(ctx); err != nil {
				return err
			}
			if !rt.token.Authenticated() {
				return fmt.Errorf("not signed in: run cartctl login first")
			}
			if err := rt.session.Sync(ctx); err != nil {
				return fmt.Errorf("draft order sync failed: %w", err)
			}
			return newFormatter(opts, cmd).Success(newCartView(rt.session))
		},
	}
}
