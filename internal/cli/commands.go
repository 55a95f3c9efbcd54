package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Kerhoff/toyrent/internal/models"
)

var (
	successColor = color.New(color.FgGreen)
	headerColor  = color.New(color.FgCyan, color.Bold)
	mutedColor   = color.New(color.FgHiBlack)
)

func newLoginCommand(factory appFactory) *cobra.Command {
	var phone, code string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a one-time code",
		Long:  "Request a one-time code for a phone number, verify it and load the account.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(a *App) error {
				ctx := cmd.Context()
				if phone == "" {
					prompt := &survey.Input{Message: "Phone number:"}
					if err := survey.AskOne(prompt, &phone, survey.WithValidator(survey.Required)); err != nil {
						return err
					}
				}
				if err := a.Service.RequestOTP(ctx, phone); err != nil {
					return err
				}
				if code == "" {
					prompt := &survey.Password{Message: "Code from SMS:"}
					if err := survey.AskOne(prompt, &code, survey.WithValidator(survey.Required)); err != nil {
						return err
					}
				}
				if err := a.Service.VerifyOTP(ctx, phone, code); err != nil {
					return err
				}

				u := a.Store.State().User
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Signed in as %s\n", u.DisplayName())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "phone number (prompted if empty)")
	cmd.Flags().StringVar(&code, "code", "", "one-time code (prompted if empty)")
	return cmd
}

func newSyncCommand(factory appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reload account data from the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(a *App) error {
				if err := a.Service.Refresh(cmd.Context()); err != nil {
					return err
				}
				st := a.Store.State()
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Synced %d children, %d plans\n",
					len(st.User.Children), len(st.SubscriptionPlans))
				return nil
			})
		},
	}
}

func newChildrenCommand(factory appFactory) *cobra.Command {
	var with, without []string

	cmd := &cobra.Command{
		Use:   "children",
		Short: "List children and their subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(a *App) error {
				if a.Store.State().User == nil {
					return fmt.Errorf("not signed in, run 'toyrent login' first")
				}

				var children []models.Child
				switch {
				case len(with) > 0:
					children = a.Store.ChildrenWithSubscriptionIn(toStatuses(with)...)
				case len(without) > 0:
					children = a.Store.ChildrenWithoutSubscriptionIn(toStatuses(without)...)
				default:
					children = a.Store.State().User.Children
				}
				printChildren(cmd.OutOrStdout(), children)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&with, "with", nil, "only children with a subscription in these statuses")
	cmd.Flags().StringSliceVar(&without, "without", nil, "only children without a subscription in these statuses")
	return cmd
}

func newPlansCommand(factory appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(a *App) error {
				out := cmd.OutOrStdout()
				plans := a.Store.State().SubscriptionPlans
				if len(plans) == 0 {
					mutedColor.Fprintln(out, "No plans loaded, run 'toyrent sync'")
					return nil
				}
				for _, p := range plans {
					headerColor.Fprintf(out, "%-4d %s", p.ID, p.Name)
					fmt.Fprintf(out, "  %d toys, %d\n", p.ToysCount, p.Price)
				}
				return nil
			})
		},
	}
}

func newLogoutCommand(factory appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and wipe local data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(a *App) error {
				if err := a.Service.Logout(cmd.Context()); err != nil {
					return err
				}
				successColor.Fprintln(cmd.OutOrStdout(), "✓ Signed out")
				return nil
			})
		},
	}
}

func toStatuses(raw []string) []models.SubscriptionStatus {
	out := make([]models.SubscriptionStatus, 0, len(raw))
	for _, r := range raw {
		out = append(out, models.SubscriptionStatus(strings.TrimSpace(r)))
	}
	return out
}

func printChildren(out io.Writer, children []models.Child) {
	if len(children) == 0 {
		mutedColor.Fprintln(out, "No children")
		return
	}
	for _, c := range children {
		headerColor.Fprintf(out, "%-4d %s", c.ID, c.Name)
		fmt.Fprintf(out, "  %s\n", c.DateOfBirth)
		for _, sub := range c.Subscriptions {
			fmt.Fprintf(out, "       #%d plan %d  %s\n", sub.ID, sub.PlanID, sub.Status)
		}
	}
}
