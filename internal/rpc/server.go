// Package rpc serves the unit engine over JSON-RPC 2.0 and provides the
// matching client. Messages are framed with Content-Length headers.
package rpc

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/misu-units/misu/internal/logger"
	"github.com/misu-units/misu/internal/store"
	"github.com/misu-units/misu/pkg/numfmt"
	"github.com/misu-units/misu/pkg/parser"
	"github.com/misu-units/misu/pkg/protocol"
	"github.com/misu-units/misu/pkg/quantity"
	"github.com/misu-units/misu/pkg/represent"
	"github.com/misu-units/misu/pkg/units"
)

var log = logger.ForComponent("rpc")

// Systems yields the unit system a request should run against. The daemon
// swaps it when representation files are reloaded.
type Systems interface {
	System() *units.System
}

type SystemFunc func() *units.System

func (f SystemFunc) System() *units.System { return f() }

// Static serves one fixed system.
func Static(sys *units.System) Systems {
	return SystemFunc(func() *units.System { return sys })
}

type Server struct {
	systems Systems
	store   *store.Store
	metrics *Metrics
	timeout time.Duration
	started time.Time
}

type Option func(*Server)

func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTimeout bounds the time spent on each request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func NewServer(systems Systems, opts ...Option) *Server {
	s := &Server{systems: systems, started: time.Now()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeConn answers requests arriving on rwc until it is closed or ctx is
// done. Wait on the returned connection's DisconnectNotify.
func (s *Server) ServeConn(ctx context.Context, rwc io.ReadWriteCloser) *jsonrpc2.Conn {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	s.metrics.connOpened()
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(s.handle)))
	go func() {
		<-conn.DisconnectNotify()
		s.metrics.connClosed()
	}()
	return conn
}

func (s *Server) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.dispatch(ctx, req)
	if err != nil {
		rpcErr := toRPCError(err)
		log.Debug("request failed", "method", req.Method, "code", rpcErr.Code, "error", err)
		s.metrics.observe(req.Method, rpcErr.Code, time.Since(start))
		return nil, rpcErr
	}
	s.metrics.observe(req.Method, 0, time.Since(start))
	return result, nil
}

func (s *Server) dispatch(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	sys := s.systems.System()

	switch req.Method {
	case protocol.MethodEval:
		var p protocol.EvalParams
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		q, err := evaluate(sys, p.Expr)
		if err != nil {
			return nil, err
		}
		return render(sys, q, p.Format)

	case protocol.MethodParse:
		var p protocol.ParseParams
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return s.parse(sys, p)

	case protocol.MethodConvert:
		var p protocol.ConvertParams
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return convert(sys, p)

	case protocol.MethodCategory:
		var p protocol.CategoryParams
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		q, err := evaluate(sys, p.Expr)
		if err != nil {
			return nil, err
		}
		name, err := sys.Category(q)
		if err != nil {
			return nil, err
		}
		return &protocol.CategoryResult{Category: name}, nil

	case protocol.MethodFormat:
		var p protocol.FormatParams
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		q, err := evaluate(sys, p.Expr)
		if err != nil {
			return nil, err
		}
		r, err := render(sys, q, p.Spec)
		if err != nil {
			return nil, err
		}
		return &protocol.FormatResult{Text: r.Text}, nil

	case protocol.MethodList:
		var p protocol.ListParams
		if req.Params != nil {
			if err := decode(req, &p); err != nil {
				return nil, err
			}
		}
		return list(sys, p), nil

	case protocol.MethodRepresent:
		var p protocol.RepresentParams
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return s.represent(sys, p)

	case protocol.MethodWorksheetSet:
		var p protocol.WorksheetSetParams
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return s.worksheetSet(ctx, sys, p)

	case protocol.MethodWorksheetGet:
		var p protocol.WorksheetNameParams
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		if s.store == nil {
			return nil, ErrNoWorksheet
		}
		e, err := s.store.Get(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		return worksheetEntry(sys, e), nil

	case protocol.MethodWorksheetList:
		if s.store == nil {
			return nil, ErrNoWorksheet
		}
		entries, err := s.store.List(ctx)
		if err != nil {
			return nil, err
		}
		out := &protocol.WorksheetListResult{Entries: make([]protocol.WorksheetEntry, 0, len(entries))}
		for i := range entries {
			out.Entries = append(out.Entries, *worksheetEntry(sys, &entries[i]))
		}
		return out, nil

	case protocol.MethodWorksheetDelete:
		var p protocol.WorksheetNameParams
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		if s.store == nil {
			return nil, ErrNoWorksheet
		}
		if err := s.store.Delete(ctx, p.Name); err != nil {
			return nil, err
		}
		return &protocol.DeleteResult{Deleted: true}, nil

	case protocol.MethodHealth:
		return &protocol.HealthResponse{
			Status:     "ok",
			Uptime:     int64(time.Since(s.started).Seconds()),
			Units:      sys.Registry().Len(),
			Categories: sys.Categories().Len(),
			Rules:      sys.Formats().Len(),
		}, nil
	}

	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found: " + req.Method}
}

func decode(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return invalidParams("missing params")
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return invalidParams("invalid params: %v", err)
	}
	return nil
}

func evaluate(sys *units.System, expr string) (quantity.Quantity, error) {
	if strings.TrimSpace(expr) == "" {
		return quantity.Quantity{}, invalidParams("expr is required")
	}
	return parser.Parse(expr, sys)
}

func render(sys *units.System, q quantity.Quantity, spec string) (*protocol.QuantityResult, error) {
	q = sys.Bind(q)
	text := q.String()
	if spec != "" {
		var err error
		if text, err = q.FormatSpec(spec); err != nil {
			return nil, invalidParams("format %q: %v", spec, err)
		}
	}
	cat, _ := sys.Category(q)
	return &protocol.QuantityResult{Text: text, Quantity: q, Category: cat}, nil
}

func (s *Server) parse(sys *units.System, p protocol.ParseParams) (*protocol.ParseResult, error) {
	if strings.TrimSpace(p.Input) == "" {
		return nil, invalidParams("input is required")
	}
	g := parser.NewGrammar(sys)
	acc, err := g.Reduce(p.Input)
	if err != nil {
		return nil, err
	}
	q, err := g.Resolve(p.Input, acc)
	if err != nil {
		return nil, err
	}
	value, err := render(sys, q, "")
	if err != nil {
		return nil, err
	}
	return &protocol.ParseResult{
		Magnitude: acc.Magnitude,
		Units:     acc.Units,
		Reduced:   acc.String(),
		Value:     *value,
	}, nil
}

func convert(sys *units.System, p protocol.ConvertParams) (*protocol.ConvertResult, error) {
	if strings.TrimSpace(p.To) == "" {
		return nil, invalidParams("to is required")
	}
	q, err := evaluate(sys, p.Expr)
	if err != nil {
		return nil, err
	}
	target, err := parser.Parse(p.To, sys)
	if err != nil {
		return nil, err
	}
	ratio, err := q.Convert(target)
	if err != nil {
		return nil, err
	}

	text := ratio.String()
	if v, ok := ratio.Float(); ok {
		text = numfmt.Repr(v)
	}
	return &protocol.ConvertResult{Values: ratio.Values(), Text: text + " " + strings.TrimSpace(p.To)}, nil
}

func list(sys *units.System, p protocol.ListParams) *protocol.ListResult {
	out := &protocol.ListResult{Units: []protocol.UnitInfo{}, Categories: sys.Categories().Names()}
	seen := make(map[*units.Definition]bool)

	for _, sym := range sys.Registry().Ordered() {
		def, ok := sys.Definition(sym)
		if !ok || seen[def] {
			continue
		}
		seen[def] = true
		if def.Prefix != nil && !p.Prefixed {
			continue
		}
		q := sys.Bind(def.Quantity)
		cat, _ := sys.Category(q)
		if p.Category != "" && cat != p.Category {
			continue
		}
		out.Units = append(out.Units, protocol.UnitInfo{
			Symbols:  append([]string(nil), def.Symbols...),
			Text:     q.String(),
			Category: cat,
			Stem:     def.Stem,
			Notes:    def.Notes,
		})
	}
	return out
}

// represent changes the shared formatting context, so the rule holds for
// every later request until the next reload.
func (s *Server) represent(sys *units.System, p protocol.RepresentParams) (*protocol.RepresentResult, error) {
	q, err := evaluate(sys, p.Unit)
	if err != nil {
		return nil, err
	}

	var opts []represent.Option
	if p.As != "" {
		target, err := parser.Parse(p.As, sys)
		if err != nil {
			return nil, err
		}
		symbol := p.Symbol
		if symbol == "" {
			symbol = strings.TrimSpace(p.As)
		}
		opts = append(opts, represent.AsUnit(target), represent.Symbol(symbol))
	}
	if p.Format != "" {
		if _, err := numfmt.Parse(p.Format); err != nil {
			return nil, invalidParams("format %q: %v", p.Format, err)
		}
		opts = append(opts, represent.Format(p.Format))
	}
	if p.Offset != 0 {
		opts = append(opts, represent.Offset(p.Offset))
	}

	if err := sys.SetRepresent(q, opts...); err != nil {
		return nil, err
	}
	s.metrics.SetRules(sys.Formats().Len())
	log.Info("representation changed", "unit", p.Unit, "as", p.As)

	return &protocol.RepresentResult{Text: sys.Bind(q).String()}, nil
}

func (s *Server) worksheetSet(ctx context.Context, sys *units.System, p protocol.WorksheetSetParams) (*protocol.WorksheetEntry, error) {
	if s.store == nil {
		return nil, ErrNoWorksheet
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, invalidParams("name is required")
	}
	q, err := evaluate(sys, p.Expr)
	if err != nil {
		return nil, err
	}
	e, err := s.store.Set(ctx, p.Name, p.Expr, q)
	if err != nil {
		return nil, err
	}
	return worksheetEntry(sys, e), nil
}

func worksheetEntry(sys *units.System, e *store.Entry) *protocol.WorksheetEntry {
	q := sys.Bind(e.Quantity)
	cat, _ := sys.Category(q)
	return &protocol.WorksheetEntry{
		ID:        e.ID,
		Name:      e.Name,
		Expr:      e.Expr,
		Value:     protocol.QuantityResult{Text: q.String(), Quantity: q, Category: cat},
		UpdatedAt: e.UpdatedAt,
	}
}
