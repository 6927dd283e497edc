package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misu-units/misu/internal/config"
)

type cli struct {
	t  *testing.T
	in string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv(config.EnvHome, t.TempDir())
	t.Setenv(config.EnvConfig, "")
	return &cli{t: t}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(c.in))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) ok(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "misu %s", strings.Join(args, " "))
	return out
}

func TestEvalCommands(t *testing.T) {
	c := newCLI(t)

	assert.Equal(t, "9000 kg/hr\n", c.ok("eval", "2.5", "kg/s"))
	assert.Equal(t, "124812.00 kg/hr\n", c.ok("eval", "-f", ".2f", "34.67 kg/s"))
	assert.Equal(t, "2.0 kg/(s) = 7200 kg/hr\n", c.ok("parse", "6 kg / 3 s"))
	assert.Equal(t, "3.280839895013123 ft\n", c.ok("convert", "1 m", "ft"))
	assert.Equal(t, "Energy\n", c.ok("category", "1 BTU"))
	assert.Equal(t, "     124812.00 kg/hr\n", c.ok("format", "34.67 kg/s", ">20.2f"))
	assert.Equal(t, "1e-05 bar\n", c.ok("represent", "Pa", "bar", "--format", ".3g"))

	_, err := c.run("eval", "2 kg + 3 m")
	assert.Error(t, err)
	_, err = c.run("convert", "1 m")
	assert.Error(t, err, "convert needs a target unit")
}

func TestJSONOutput(t *testing.T) {
	c := newCLI(t)

	var res struct {
		Text     string `json:"text"`
		Category string `json:"category"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.ok("-o", "json", "eval", "2.5 kg/s")), &res))
	assert.Equal(t, "9000 kg/hr", res.Text)
	assert.Equal(t, "Mass flowrate", res.Category)

	_, err := c.run("-o", "xml", "eval", "1 m")
	assert.ErrorContains(t, err, "unknown output")
}

func TestListCommand(t *testing.T) {
	c := newCLI(t)

	out := c.ok("list", "--category", "Energy")
	assert.Contains(t, out, "SYMBOLS")
	assert.Contains(t, out, "1054 J")
	assert.NotContains(t, out, "kg/hr")

	cats := c.ok("list", "--categories")
	assert.Contains(t, strings.Split(cats, "\n"), "Mass flowrate")
}

func TestWorksheetCommands(t *testing.T) {
	c := newCLI(t)

	assert.Equal(t, "p = 2e+06 Pa\n", c.ok("worksheet", "set", "p", "2000", "kPa"))
	assert.Equal(t, "2e+06 Pa\n", c.ok("ws", "get", "p"))
	assert.Contains(t, c.ok("worksheet", "list"), "2000 kPa")

	c.ok("worksheet", "delete", "p")
	_, err := c.run("worksheet", "get", "p")
	assert.Error(t, err)
}

func TestReplCommand(t *testing.T) {
	c := newCLI(t)
	c.in = "6 kg / 3 s\nq\n"

	out := c.ok("repl", "--quiet")
	assert.Contains(t, out, "2.0 kg/(s) = 7200 kg/hr")
	assert.Contains(t, out, "Exiting...")
	assert.NotContains(t, out, "Try some operations")
}

func TestDaemonCommandsWithoutDaemon(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("daemon", "status")
	assert.ErrorIs(t, err, errNotRunning)
	_, err = c.run("daemon", "stop")
	assert.ErrorIs(t, err, errNotRunning)
	_, err = c.run("--daemon", "eval", "1 m")
	assert.Error(t, err)
}
