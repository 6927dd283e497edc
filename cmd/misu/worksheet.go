package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/misu-units/misu/internal/rpc"
	"github.com/misu-units/misu/pkg/protocol"
)

func newWorksheetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "worksheet",
		Aliases: []string{"ws"},
		Short:   "Named quantities kept in the worksheet database",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set NAME EXPR...",
			Short: "Evaluate EXPR and store it under NAME",
			Args:  cobra.MinimumNArgs(2),
			RunE: a.withClient(true, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, args []string) error {
				e, err := c.WorksheetSet(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return a.print(cmd, e, e.Name+" = "+e.Value.Text)
			}),
		},
		&cobra.Command{
			Use:   "get NAME",
			Short: "Print a stored quantity with the current display rules",
			Args:  cobra.ExactArgs(1),
			RunE: a.withClient(true, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, args []string) error {
				e, err := c.WorksheetGet(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(cmd, e, e.Value.Text)
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored quantities",
			Args:  cobra.NoArgs,
			RunE: a.withClient(true, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, _ []string) error {
				entries, err := c.WorksheetList(ctx)
				if err != nil {
					return err
				}
				if a.output == "json" {
					return a.print(cmd, protocol.WorksheetListResult{Entries: entries}, "")
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tVALUE\tEXPR\tUPDATED")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Value.Text, e.Expr, e.UpdatedAt.Local().Format(time.DateTime))
				}
				return w.Flush()
			}),
		},
		&cobra.Command{
			Use:     "delete NAME",
			Aliases: []string{"rm"},
			Short:   "Remove a stored quantity",
			Args:    cobra.ExactArgs(1),
			RunE: a.withClient(true, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, args []string) error {
				if err := c.WorksheetDelete(ctx, args[0]); err != nil {
					return err
				}
				return a.print(cmd, protocol.DeleteResult{Deleted: true}, "deleted "+args[0])
			}),
		},
	)
	return cmd
}
