package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/loan-ledger/config"
	"github.com/warp/loan-ledger/factory"
	"github.com/warp/loan-ledger/loan"
)

// =============================================================================
// SCHEDULE
// =============================================================================

func (a *app) scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <loan-file>",
		Short: "Print the repayment schedule of a loan document",
		Long: `Generate the repayment schedule for a loan document (.yaml, .yml or .json)
without saving anything. A missing start_date means today.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := factory.LoadLoanFile(args[0])
			if err != nil {
				return err
			}
			terms, err := doc.Terms(loan.Today(time.Now))
			if err != nil {
				return err
			}
			return printSchedule(cmd.OutOrStdout(), terms, loan.GenerateSchedule(terms))
		},
	}
}

func printSchedule(out io.Writer, t loan.Terms, s loan.Schedule) error {
	fmt.Fprintf(out, "Principal:    %s at %s%%\n", t.Principal.Display(), t.RatePercent.String())
	fmt.Fprintf(out, "Total:        %s\n", s.TotalRepayment.Round().Display())
	fmt.Fprintf(out, "Installment:  %s x %d (%s)\n", s.Installment.Display(), s.PeriodCount, t.Frequency)
	fmt.Fprintf(out, "Period:       %s to %s\n\n", t.StartDate, s.EndDate)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDue\tAmount\t")
	for _, e := range s.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t\n", e.Sequence, e.DueDate, e.Expected.Display())
	}
	return tw.Flush()
}

// =============================================================================
// AUDIT
// =============================================================================

func (a *app) auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Recompute every loan's aggregate and repair drift",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, st, err := a.openService()
			if err != nil {
				return err
			}
			defer st.Close()

			rep, err := svc.Audit(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "lenders: %d  loans: %d  repaired: %d\n", rep.Lenders, rep.Loans, len(rep.Repaired))
			for _, id := range rep.Repaired {
				fmt.Fprintf(cmd.OutOrStdout(), "  repaired %s\n", id)
			}
			return err
		},
	}
}

// =============================================================================
// CONFIG & VERSION
// =============================================================================

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config <path>",
		Short: "Write the default configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().SaveToFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "loan-ledger version %s\n", version)
		},
	}
}
