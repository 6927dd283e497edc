// Package repl is the interactive calculator behind "misu repl". Each line
// is read with the calculator grammar, reduced to a number and unit text,
// and then evaluated into a quantity.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/misu-units/misu/internal/rpc"
	"github.com/misu-units/misu/pkg/parser"
	"github.com/misu-units/misu/pkg/units"
)

// Result is one evaluated line: the reduced accumulator and the rendered
// quantity.
type Result struct {
	Reduced string
	Text    string
}

type Calculator interface {
	Calculate(ctx context.Context, input string) (Result, error)
}

type local struct {
	sys     *units.System
	grammar *parser.Grammar
}

// Local evaluates in process against sys.
func Local(sys *units.System) Calculator {
	return &local{sys: sys, grammar: parser.NewGrammar(sys)}
}

func (l *local) Calculate(_ context.Context, input string) (Result, error) {
	acc, err := l.grammar.Reduce(input)
	if err != nil {
		return Result{}, err
	}
	q, err := l.grammar.Resolve(input, acc)
	if err != nil {
		return Result{}, err
	}
	return Result{Reduced: acc.String(), Text: l.sys.Bind(q).String()}, nil
}

type remote struct {
	client *rpc.Client
}

// Remote sends every line to a running daemon.
func Remote(c *rpc.Client) Calculator {
	return &remote{client: c}
}

func (r *remote) Calculate(ctx context.Context, input string) (Result, error) {
	res, err := r.client.Parse(ctx, input)
	if err != nil {
		return Result{}, err
	}
	return Result{Reduced: res.Reduced, Text: res.Value.Text}, nil
}

type REPL struct {
	calc   Calculator
	in     io.Reader
	out    io.Writer
	Prompt string
	Quiet  bool
}

func New(calc Calculator, in io.Reader, out io.Writer) *REPL {
	return &REPL{calc: calc, in: in, out: out, Prompt: "> "}
}

// Run reads until end of input, "q" or a cancelled context. Errors in a
// line are printed and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	if !r.Quiet {
		fmt.Fprintln(r.out, "Try some operations (q to end):")
	}

	scanner := bufio.NewScanner(r.in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(r.out, r.Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "q", "quit", "exit":
			fmt.Fprintln(r.out, "Exiting...")
			return nil
		}

		res, err := r.calc.Calculate(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			continue
		}
		if res.Reduced == res.Text {
			fmt.Fprintln(r.out, res.Text)
		} else {
			fmt.Fprintf(r.out, "%s = %s\n", res.Reduced, res.Text)
		}
	}
}
