package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/misu-units/misu/internal/repl"
	"github.com/misu-units/misu/internal/rpc"
	"github.com/misu-units/misu/pkg/protocol"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "misu",
		Short:        "Calculate with physical quantities and units",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $MISU_CONFIG or ~/.misu/config.yaml)")
	flags.BoolVarP(&a.useDaemon, "daemon", "d", false, "send requests to a running misud")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text or json")
	flags.StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newEvalCmd(a),
		newParseCmd(a),
		newConvertCmd(a),
		newCategoryCmd(a),
		newFormatCmd(a),
		newListCmd(a),
		newRepresentCmd(a),
		newReplCmd(a),
		newWorksheetCmd(a),
		newDaemonCmd(a),
	)
	return root
}

type clientFunc func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, args []string) error

// withClient wraps fn so it runs with an RPC client that is closed when the
// command returns.
func (a *app) withClient(withStore bool, fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := a.client(ctx, withStore)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, c, cmd, args)
	}
}

// print writes v as indented JSON with -o json, or text otherwise.
func (a *app) print(cmd *cobra.Command, v any, text string) error {
	if a.output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

func newEvalCmd(a *app) *cobra.Command {
	var spec string
	cmd := &cobra.Command{
		Use:   "eval EXPR...",
		Short: "Evaluate an expression such as \"2.5 * kg / s\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withClient(false, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, args []string) error {
			res, err := c.Eval(ctx, strings.Join(args, " "), spec)
			if err != nil {
				return err
			}
			return a.print(cmd, res, res.Text)
		}),
	}
	cmd.Flags().StringVarP(&spec, "format", "f", "", "number format spec, e.g. .3f or >12,.1f")
	return cmd
}

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse INPUT...",
		Short: "Reduce calculator input such as \"6 kg / 3 s\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withClient(false, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, args []string) error {
			res, err := c.Parse(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.print(cmd, res, res.Reduced+" = "+res.Value.Text)
		}),
	}
}

func newConvertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "convert EXPR UNIT",
		Short: "Express a quantity as a multiple of another unit",
		Args:  cobra.ExactArgs(2),
		RunE: a.withClient(false, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, args []string) error {
			res, err := c.Convert(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return a.print(cmd, res, res.Text)
		}),
	}
}

func newCategoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "category EXPR...",
		Short: "Print the category of a quantity",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withClient(false, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, args []string) error {
			name, err := c.Category(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.print(cmd, protocol.CategoryResult{Category: name}, name)
		}),
	}
}

func newFormatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "format EXPR SPEC",
		Short: "Render a quantity with a number format spec",
		Args:  cobra.ExactArgs(2),
		RunE: a.withClient(false, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, args []string) error {
			text, err := c.Format(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return a.print(cmd, protocol.FormatResult{Text: text}, text)
		}),
	}
}

func newListCmd(a *app) *cobra.Command {
	var p protocol.ListParams
	var categories bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List units, or categories with --categories",
		Args:  cobra.NoArgs,
		RunE: a.withClient(false, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, _ []string) error {
			res, err := c.List(ctx, p)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return a.print(cmd, res, "")
			}

			if categories {
				for _, name := range res.Categories {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOLS\tVALUE\tCATEGORY")
			for _, u := range res.Units {
				fmt.Fprintf(w, "%s\t%s\t%s\n", strings.Join(u.Symbols, " "), u.Text, u.Category)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVarP(&p.Category, "category", "c", "", "only units of this category")
	cmd.Flags().BoolVar(&p.Prefixed, "prefixed", false, "include SI-prefixed units")
	cmd.Flags().BoolVar(&categories, "categories", false, "list category names instead of units")
	return cmd
}

func newRepresentCmd(a *app) *cobra.Command {
	var p protocol.RepresentParams
	cmd := &cobra.Command{
		Use:   "represent UNIT AS",
		Short: "Change how quantities with UNIT's dimension are displayed",
		Long: "Change how quantities with UNIT's dimension are displayed.\n\n" +
			"Without --daemon the rule only lasts for this command; with --daemon it\n" +
			"applies to every later request until the daemon reloads its rules.",
		Args: cobra.ExactArgs(2),
		RunE: a.withClient(false, func(ctx context.Context, c *rpc.Client, cmd *cobra.Command, args []string) error {
			p.Unit, p.As = args[0], args[1]
			text, err := c.Represent(ctx, p)
			if err != nil {
				return err
			}
			return a.print(cmd, protocol.RepresentResult{Text: text}, text)
		}),
	}
	cmd.Flags().StringVar(&p.Symbol, "symbol", "", "display symbol (default AS)")
	cmd.Flags().StringVarP(&p.Format, "format", "f", "", "number format spec")
	cmd.Flags().Float64Var(&p.Offset, "offset", 0, "value added after scaling, e.g. -273.15 for degC")
	return cmd
}

func newReplCmd(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive calculator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var calc repl.Calculator
			if a.useDaemon {
				c, err := a.client(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer a.close()
				calc = repl.Remote(c)
			} else {
				sys, err := a.system()
				if err != nil {
					return err
				}
				calc = repl.Local(sys)
			}

			r := repl.New(calc, cmd.InOrStdin(), cmd.OutOrStdout())
			r.Quiet = quiet
			return r.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the banner")
	return cmd
}
