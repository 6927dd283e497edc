package rpc

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misu-units/misu/internal/store"
	"github.com/misu-units/misu/pkg/catalog"
	"github.com/misu-units/misu/pkg/protocol"
	"github.com/misu-units/misu/pkg/units"
)

func newSystem(t *testing.T) *units.System {
	t.Helper()
	sys, err := catalog.New()
	require.NoError(t, err)
	sys.Freeze()
	return sys
}

func connect(t *testing.T, sys *units.System, opts ...Option) *Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	serverSide, clientSide := net.Pipe()
	conn := NewServer(Static(sys), opts...).ServeConn(ctx, serverSide)
	client := NewClient(ctx, clientSide)

	t.Cleanup(func() {
		client.Close()
		conn.Close()
		cancel()
	})
	return client
}

func TestEvalAndFormat(t *testing.T) {
	ctx := context.Background()
	c := connect(t, newSystem(t))

	res, err := c.Eval(ctx, "2.5 kg/s", "")
	require.NoError(t, err)
	assert.Equal(t, "9000 kg/hr", res.Text)
	assert.Equal(t, "Mass flowrate", res.Category)
	v, ok := res.Quantity.Magnitude().Float()
	require.True(t, ok)
	assert.Equal(t, 2.5, v)
	assert.Equal(t, map[string]float64{"kg": 1, "s": -1}, res.Quantity.Units().Map())

	res, err = c.Eval(ctx, "34.67 kg/s", ".2f")
	require.NoError(t, err)
	assert.Equal(t, "124812.00 kg/hr", res.Text)

	text, err := c.Format(ctx, "34.67 kg/s", ">20.2f")
	require.NoError(t, err)
	assert.Equal(t, "     124812.00 kg/hr", text)

	_, err = c.Format(ctx, "1 m", "%%")
	assert.True(t, IsCode(err, protocol.CodeInvalidParams), "%v", err)
}

func TestParseConvertCategory(t *testing.T) {
	ctx := context.Background()
	c := connect(t, newSystem(t))

	parsed, err := c.Parse(ctx, "6 kg / 3 s")
	require.NoError(t, err)
	assert.Equal(t, 2.0, parsed.Magnitude)
	assert.Equal(t, "kg/(s)", parsed.Units)
	assert.Equal(t, "2.0 kg/(s)", parsed.Reduced)
	assert.Equal(t, "7200 kg/hr", parsed.Value.Text)

	conv, err := c.Convert(ctx, "1 m", "ft")
	require.NoError(t, err)
	assert.Equal(t, []float64{3.280839895013123}, conv.Values)
	assert.Equal(t, "3.280839895013123 ft", conv.Text)

	name, err := c.Category(ctx, "1 BTU")
	require.NoError(t, err)
	assert.Equal(t, "Energy", name)
}

func TestErrorCodes(t *testing.T) {
	ctx := context.Background()
	c := connect(t, newSystem(t))

	_, err := c.Eval(ctx, "2 m + 3 kg", "")
	assert.True(t, IsCode(err, protocol.CodeIncompatibleUnits), "%v", err)

	_, err = c.Eval(ctx, "3 flurbs", "")
	assert.True(t, IsCode(err, protocol.CodeUnknownUnit), "%v", err)

	_, err = c.Eval(ctx, "2 *", "")
	assert.True(t, IsCode(err, protocol.CodeParse), "%v", err)

	_, err = c.Category(ctx, "m**5")
	assert.True(t, IsCode(err, protocol.CodeUncategorized), "%v", err)

	_, err = c.Eval(ctx, "  ", "")
	assert.True(t, IsCode(err, protocol.CodeInvalidParams), "%v", err)

	_, err = c.Convert(ctx, "1 m", "s")
	assert.True(t, IsCode(err, protocol.CodeIncompatibleUnits), "%v", err)

	err = c.Call(ctx, "units.teleport", struct{}{}, nil)
	assert.True(t, IsCode(err, jsonrpc2.CodeMethodNotFound), "%v", err)

	_, err = c.Parse(ctx, "2 kg + 3 m")
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(protocol.CodeParse), rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "Units don't match")
}

func TestList(t *testing.T) {
	ctx := context.Background()
	c := connect(t, newSystem(t))

	res, err := c.List(ctx, protocol.ListParams{Category: "Energy"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Units)
	assert.Contains(t, res.Categories, "Energy")

	var sawBTU bool
	for _, u := range res.Units {
		assert.Equal(t, "Energy", u.Category)
		assert.Empty(t, u.Stem, "prefixed units are listed only on request")
		if u.Symbols[0] == "BTU" {
			sawBTU = true
			assert.Equal(t, "1054 J", u.Text)
		}
	}
	assert.True(t, sawBTU)

	res, err = c.List(ctx, protocol.ListParams{Category: "Energy", Prefixed: true})
	require.NoError(t, err)
	var sawKJ bool
	for _, u := range res.Units {
		if u.Symbols[0] == "kJ" {
			sawKJ = true
			assert.Equal(t, "J", u.Stem)
		}
	}
	assert.True(t, sawKJ)
}

func TestRepresentAffectsLaterRequests(t *testing.T) {
	ctx := context.Background()
	sys := newSystem(t)
	c := connect(t, sys)

	before, err := c.Health(ctx)
	require.NoError(t, err)

	text, err := c.Represent(ctx, protocol.RepresentParams{Unit: "Pa", As: "bar", Format: ".3g"})
	require.NoError(t, err)
	assert.Equal(t, "1e-05 bar", text)

	res, err := c.Eval(ctx, "2000 kPa", "")
	require.NoError(t, err)
	assert.Equal(t, "20 bar", res.Text)

	after, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Rules, after.Rules, "Pa already had a rule")

	_, err = c.Represent(ctx, protocol.RepresentParams{Unit: "m", As: "kg"})
	assert.True(t, IsCode(err, protocol.CodeIncompatibleUnits), "%v", err)

	_, err = c.Represent(ctx, protocol.RepresentParams{Unit: "m"})
	assert.True(t, IsCode(err, protocol.CodeInvalidParams), "%v", err)
}

func TestWorksheet(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	c := connect(t, newSystem(t), WithStore(st))

	entry, err := c.WorksheetSet(ctx, "feed", "2.5 kg/s")
	require.NoError(t, err)
	assert.Equal(t, "9000 kg/hr", entry.Value.Text)
	assert.NotEmpty(t, entry.ID)

	got, err := c.WorksheetGet(ctx, "feed")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "2.5 kg/s", got.Expr)

	_, err = c.WorksheetSet(ctx, "length", "3 ft")
	require.NoError(t, err)

	entries, err := c.WorksheetList(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "feed", entries[0].Name)
	assert.Equal(t, "length", entries[1].Name)

	require.NoError(t, c.WorksheetDelete(ctx, "feed"))
	_, err = c.WorksheetGet(ctx, "feed")
	assert.True(t, IsCode(err, protocol.CodeNotFound), "%v", err)

	_, err = c.WorksheetSet(ctx, "", "1 m")
	assert.True(t, IsCode(err, protocol.CodeInvalidParams), "%v", err)
}

func TestWorksheetDisabled(t *testing.T) {
	c := connect(t, newSystem(t))
	_, err := c.WorksheetList(context.Background())
	assert.True(t, IsCode(err, protocol.CodeInternal), "%v", err)
}

func TestHealth(t *testing.T) {
	sys := newSystem(t)
	c := connect(t, sys)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, sys.Registry().Len(), h.Units)
	assert.Equal(t, sys.Categories().Len(), h.Categories)
	assert.Positive(t, h.Rules)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics()
	c := connect(t, newSystem(t), WithMetrics(m))

	_, err := c.Eval(ctx, "1 m", "")
	require.NoError(t, err)
	_, err = c.Eval(ctx, "1 m + 1 s", "")
	require.Error(t, err)

	m.Reloaded(nil, 7)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `misud_rpc_requests_total{code="0",method="units.eval"} 1`)
	assert.Contains(t, text, `misud_rpc_requests_total{code="-32001",method="units.eval"} 1`)
	assert.Contains(t, text, `misud_represent_reloads_total{status="ok"} 1`)
	assert.Contains(t, text, "misud_represent_rules 7")
	assert.Contains(t, text, "misud_rpc_active_connections 1")
}
