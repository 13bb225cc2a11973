package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/catering-cart/internal/auth"
	"github.com/example/catering-cart/internal/session"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the backend",
		Long: `Sign in to the backend and store the access token in the state
directory. The password may also be given in CART_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password := opts.Password
			if password == "" {
				password = os.Getenv("CART_PASSWORD")
			}
			if opts.Email == "" || password == "" {
				return fmt.Errorf("email and password are required")
			}

			ctx := cmd.Context()
			rt, err := openRuntime(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer rt.close()

			resp, err := rt.client.Login(ctx, opts.Email, password)
			if err != nil {
				return err
			}
			if err := rt.store.SaveToken(ctx, resp.AccessToken); err != nil {
				return fmt.Errorf("failed to store access token: %w", err)
			}
			rt.token.Set(resp.AccessToken)

			if err := rt.session.Start(ctx); err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd).Success(newCustomersView(rt.session))
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Long:  "Forget the stored access token. The local cart is kept but no longer synced.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.store.SaveToken(ctx, ""); err != nil {
				return fmt.Errorf("failed to remove access token: %w", err)
			}
			return newFormatter(opts, cmd).Success(messageView{Message: "Signed out"})
		},
	}
}

// NewCustomerCommand creates the customer command.
func NewCustomerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "customer [customer-id]",
		Short: "List customers or switch the selected customer",
		Long: `Without an argument, list the customers the account may order for.
With an argument, switch to that customer. Switching empties the cart and
loads the new customer's draft order; the previous draft stays on the
backend.`,
		Args: cobra.MaximumNArgs(1),
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
			out := newFormatter(opts, cmd)
			if len(args) == 0 {
				return out.Success(newCustomersView(rt.session))
			}

			if err := rt.session.SwitchCustomer(ctx, args[0]); err != nil {
				return err
			}
			if err := rt.session.Flush(ctx); err != nil {
				out.Warn("draft order sync failed: %v", err)
			}
			if !rt.session.Access().HasAccess {
				out.Warn("no access to customer %s", args[0])
			}
			return out.Success(newCartView(rt.session))
		},
	}
}

func newCustomersView(s *session.Session) customersView {
	access := s.Access()
	v := customersView{
		Selected:  s.Customer(),
		HasAccess: access.HasAccess,
		Customers: access.AvailableCustomers,
	}
	if v.Customers == nil {
		v.Customers = []auth.Customer{}
	}
	return v
}
