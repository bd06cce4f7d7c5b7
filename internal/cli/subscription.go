package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/eshaffer321/pluginhub-go/pkg/pluginhub"
	"github.com/spf13/cobra"
)

func newSubscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Manage your subscription",
	}
	cmd.AddCommand(
		newSubscriptionShowCmd(),
		newSubscriptionPlansCmd(),
		newSubscriptionCheckoutCmd(),
		newSubscriptionPortalCmd(),
		newSubscriptionCancelCmd(),
	)
	return cmd
}

func printSubscription(w io.Writer, sub *pluginhub.Subscription) {
	if sub == nil {
		fmt.Fprintln(w, "No subscription.")
		return
	}
	fmt.Fprintf(w, "Subscription: %s\n", sub.ID)
	fmt.Fprintf(w, "  Plan:   %s\n", firstNonEmpty(sub.PlanName, sub.PlanID))
	fmt.Fprintf(w, "  Status: %s\n", sub.Status)
	if sub.CurrentPeriodEnd != nil {
		label := "Renews"
		if sub.CancelAtPeriodEnd {
			label = "Ends"
		}
		fmt.Fprintf(w, "  %s:   %s\n", label, sub.CurrentPeriodEnd.Local().Format("2006-01-02"))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newSubscriptionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your current subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := client.Subscriptions.Current(cmd.Context())
			if err != nil {
				return fmt.Errorf("get subscription: %w", err)
			}
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), sub)
			}
			printSubscription(cmd.OutOrStdout(), sub)
			return nil
		},
	}
}

func newSubscriptionPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			plans, err := client.Subscriptions.Plans(cmd.Context())
			if err != nil {
				return fmt.Errorf("list plans: %w", err)
			}
			if flagJSON {
				return printJSON(out, plans)
			}

			fmt.Fprintf(out, "%-24s  %-16s  %-8s  %s\n", "PRICE ID", "NAME", "INTERVAL", "PRICE")
			for _, p := range plans {
				fmt.Fprintf(out, "%-24s  %-16s  %-8s  %.2f %s\n", p.PriceID, p.Name, p.Interval, float64(p.Amount)/100, p.Currency)
			}
			return nil
		},
	}
}

func newSubscriptionCheckoutCmd() *cobra.Command {
	var (
		params pluginhub.CheckoutParams
		wait   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Start a hosted checkout and print its URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			session, err := client.Subscriptions.CreateCheckout(cmd.Context(), &params)
			if err != nil {
				return fmt.Errorf("create checkout: %w", err)
			}
			fmt.Fprintf(out, "Complete payment at:\n  %s\n", session.URL)

			if wait <= 0 {
				return nil
			}

			fmt.Fprintf(out, "Waiting up to %s for the subscription to activate...\n", wait)
			sub, err := client.Subscriptions.WaitForActive(cmd.Context(), wait)
			if err != nil {
				return fmt.Errorf("wait for subscription: %w", err)
			}
			printSubscription(out, sub)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.PriceID, "price", "", "Plan price ID")
	cmd.Flags().StringVar(&params.SuccessURL, "success-url", "", "Redirect after payment")
	cmd.Flags().StringVar(&params.CancelURL, "cancel-url", "", "Redirect when checkout is abandoned")
	cmd.Flags().StringVar(&params.AffiliateCode, "ref", "", "Affiliate referral code")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Poll until the subscription is active (e.g. 5m)")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newSubscriptionPortalCmd() *cobra.Command {
	var returnURL string

	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Print a billing portal link",
		RunE: func(cmd *cobra.Command, args []string) error {
			portal, err := client.Subscriptions.CreatePortal(cmd.Context(), returnURL)
			if err != nil {
				return fmt.Errorf("create portal session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), portal.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&returnURL, "return-url", "", "Where the portal sends you back to")
	return cmd
}

func newSubscriptionCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel at the end of the billing period",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := client.Subscriptions.Cancel(cmd.Context())
			if err != nil {
				return fmt.Errorf("cancel subscription: %w", err)
			}
			printSubscription(cmd.OutOrStdout(), sub)
			return nil
		},
	}
}
