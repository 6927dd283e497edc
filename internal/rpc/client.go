package rpc

import (
	"context"
	"io"
	"net"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/misu-units/misu/pkg/protocol"
)

type Client struct {
	conn *jsonrpc2.Conn
}

// Dial connects to a daemon listening on the unix socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, nc), nil
}

func NewClient(ctx context.Context, rwc io.ReadWriteCloser) *Client {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	return &Client{conn: jsonrpc2.NewConn(ctx, stream, clientHandler{})}
}

// The daemon never calls back into the client.
type clientHandler struct{}

func (clientHandler) Handle(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) {}

// Call sends one request. Server failures come back as *jsonrpc2.Error
// carrying a protocol error code.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	return c.conn.Call(ctx, method, params, result)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Eval(ctx context.Context, expr, format string) (*protocol.QuantityResult, error) {
	var out protocol.QuantityResult
	if err := c.Call(ctx, protocol.MethodEval, protocol.EvalParams{Expr: expr, Format: format}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Parse(ctx context.Context, input string) (*protocol.ParseResult, error) {
	var out protocol.ParseResult
	if err := c.Call(ctx, protocol.MethodParse, protocol.ParseParams{Input: input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Convert(ctx context.Context, expr, to string) (*protocol.ConvertResult, error) {
	var out protocol.ConvertResult
	if err := c.Call(ctx, protocol.MethodConvert, protocol.ConvertParams{Expr: expr, To: to}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Category(ctx context.Context, expr string) (string, error) {
	var out protocol.CategoryResult
	if err := c.Call(ctx, protocol.MethodCategory, protocol.CategoryParams{Expr: expr}, &out); err != nil {
		return "", err
	}
	return out.Category, nil
}

func (c *Client) Format(ctx context.Context, expr, spec string) (string, error) {
	var out protocol.FormatResult
	if err := c.Call(ctx, protocol.MethodFormat, protocol.FormatParams{Expr: expr, Spec: spec}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Client) List(ctx context.Context, p protocol.ListParams) (*protocol.ListResult, error) {
	var out protocol.ListResult
	if err := c.Call(ctx, protocol.MethodList, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Represent(ctx context.Context, p protocol.RepresentParams) (string, error) {
	var out protocol.RepresentResult
	if err := c.Call(ctx, protocol.MethodRepresent, p, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Client) WorksheetSet(ctx context.Context, name, expr string) (*protocol.WorksheetEntry, error) {
	var out protocol.WorksheetEntry
	if err := c.Call(ctx, protocol.MethodWorksheetSet, protocol.WorksheetSetParams{Name: name, Expr: expr}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WorksheetGet(ctx context.Context, name string) (*protocol.WorksheetEntry, error) {
	var out protocol.WorksheetEntry
	if err := c.Call(ctx, protocol.MethodWorksheetGet, protocol.WorksheetNameParams{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WorksheetList(ctx context.Context) ([]protocol.WorksheetEntry, error) {
	var out protocol.WorksheetListResult
	if err := c.Call(ctx, protocol.MethodWorksheetList, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) WorksheetDelete(ctx context.Context, name string) error {
	var out protocol.DeleteResult
	return c.Call(ctx, protocol.MethodWorksheetDelete, protocol.WorksheetNameParams{Name: name}, &out)
}

func (c *Client) Health(ctx context.Context) (*protocol.HealthResponse, error) {
	var out protocol.HealthResponse
	if err := c.Call(ctx, protocol.MethodHealth, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
