package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/eshaffer321/pluginhub-go/pkg/pluginhub"
	"github.com/spf13/cobra"
)

func newAffiliateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "affiliate",
		Short: "Affiliate program",
	}
	cmd.AddCommand(
		newAffiliateApplyCmd(),
		newAffiliateStatusCmd(),
		newAffiliateDashboardCmd(),
		newAffiliateListCmd(),
		newAffiliateSetStatusCmd(),
	)
	return cmd
}

func newAffiliateApplyCmd() *cobra.Command {
	var app pluginhub.AffiliateApplication

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply to the affiliate program",
		RunE: func(cmd *cobra.Command, args []string) error {
			affiliate, err := client.Affiliates.Apply(cmd.Context(), &app)
			if err != nil {
				return fmt.Errorf("apply: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Application submitted, status: %s\n", affiliate.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&app.Website, "website", "", "Your website or channel URL")
	cmd.Flags().StringVar(&app.Audience, "audience", "", "Who you reach")
	cmd.Flags().StringSliceVar(&app.Channels, "channel", nil, "Promotion channels (repeatable)")
	cmd.Flags().StringVar(&app.Message, "message", "", "Anything else reviewers should know")
	cmd.Flags().StringVar(&app.PayPal, "paypal", "", "Payout email")
	_ = cmd.MarkFlagRequired("audience")
	return cmd
}

func newAffiliateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show your affiliate application status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			affiliate, err := client.Affiliates.Me(cmd.Context())
			if err != nil {
				return fmt.Errorf("affiliate status: %w", err)
			}
			if affiliate == nil {
				fmt.Fprintln(out, "You have not applied to the affiliate program.")
				return nil
			}
			if flagJSON {
				return printJSON(out, affiliate)
			}

			fmt.Fprintf(out, "Status: %s\n", affiliate.Status)
			if affiliate.ReferralCode != "" {
				fmt.Fprintf(out, "  Code:   %s\n", affiliate.ReferralCode)
			}
			if affiliate.StatusReason != "" {
				fmt.Fprintf(out, "  Reason: %s\n", affiliate.StatusReason)
			}
			return nil
		},
	}
}

func newAffiliateDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show referral stats and earnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			d, err := client.Affiliates.Dashboard(cmd.Context())
			if err != nil {
				return fmt.Errorf("affiliate dashboard: %w", err)
			}
			if flagJSON {
				return printJSON(out, d)
			}

			fmt.Fprintf(out, "Referral link: %s\n", d.ReferralLink)
			fmt.Fprintf(out, "  Clicks:      %d\n", d.Clicks)
			fmt.Fprintf(out, "  Signups:     %d\n", d.Signups)
			fmt.Fprintf(out, "  Conversions: %d\n", d.Conversions)
			fmt.Fprintf(out, "  Earnings:    %.2f total, %.2f pending, %.2f paid\n", d.TotalEarnings, d.PendingEarnings, d.PaidEarnings)
			return nil
		},
	}
}

func newAffiliateListCmd() *cobra.Command {
	var params pluginhub.AffiliateListParams
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List affiliates (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			params.Status = pluginhub.AffiliateStatus(status)

			list, err := client.Affiliates.List(cmd.Context(), &params)
			if err != nil {
				return fmt.Errorf("list affiliates: %w", err)
			}
			if flagJSON {
				return printJSON(out, list)
			}

			printAffiliates(out, list.Affiliates)
			if list.TotalPages > 1 {
				fmt.Fprintf(out, "\nPage %d of %d (%d affiliates)\n", list.Page, list.TotalPages, list.TotalCount)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, approved, rejected, suspended)")
	cmd.Flags().StringVar(&params.Search, "search", "", "Search name or email")
	cmd.Flags().IntVar(&params.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&params.Limit, "limit", 20, "Affiliates per page")
	return cmd
}

func printAffiliates(w io.Writer, affiliates []*pluginhub.Affiliate) {
	if len(affiliates) == 0 {
		fmt.Fprintln(w, "No affiliates found.")
		return
	}
	fmt.Fprintf(w, "%-26s  %-24s  %-30s  %s\n", "ID", "NAME", "EMAIL", "STATUS")
	for _, a := range affiliates {
		fmt.Fprintf(w, "%-26s  %-24s  %-30s  %s\n", a.ID, a.Name, a.Email, a.Status)
	}
}

func newAffiliateSetStatusCmd() *cobra.Command {
	var (
		status string
		reason string
	)

	cmd := &cobra.Command{
		Use:   "set-status <affiliate_id>...",
		Short: "Approve, reject, suspend or reactivate affiliates (admin)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			target := pluginhub.AffiliateStatus(strings.ToLower(status))

			affiliates, missing, err := findAffiliates(cmd.Context(), args)
			if err != nil {
				return err
			}

			result, err := client.Affiliates.BulkSetStatus(cmd.Context(), affiliates, target, reason)
			if err != nil {
				return fmt.Errorf("set status: %w", err)
			}
			for _, id := range missing {
				result.Skipped[id] = "not found"
			}

			if flagJSON {
				return printJSON(out, result)
			}

			for _, id := range result.Updated {
				fmt.Fprintf(out, "%s  → %s\n", id, target)
			}
			ids := make([]string, 0, len(result.Skipped))
			for id := range result.Skipped {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "%s  skipped: %s\n", id, result.Skipped[id])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "New status (approved, rejected, suspended)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason shown to the affiliate")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

// findAffiliates pages through the admin list to resolve ids to records;
// the current status is needed to check each transition
func findAffiliates(ctx context.Context, ids []string) ([]*pluginhub.Affiliate, []string, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var found []*pluginhub.Affiliate
	for page := 1; len(want) > 0; page++ {
		list, err := client.Affiliates.List(ctx, &pluginhub.AffiliateListParams{Page: page, Limit: pluginhub.MaxPageSize})
		if err != nil {
			return nil, nil, fmt.Errorf("list affiliates: %w", err)
		}
		for _, a := range list.Affiliates {
			if want[a.ID] {
				found = append(found, a)
				delete(want, a.ID)
			}
		}
		if len(list.Affiliates) == 0 || page >= list.TotalPages {
			break
		}
	}

	missing := make([]string, 0, len(want))
	for id := range want {
		missing = append(missing, id)
	}
	sort.Strings(missing)
	return found, missing, nil
}
