// Package grpcapi serves the formula host contract over gRPC as
// grid.formula.v1.FormulaService. Requests and responses are
// google.protobuf.Struct messages shaped like the REST API's JSON bodies.
package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "grid.formula.v1.FormulaService"

const (
	evaluateMethod     = "/" + ServiceName + "/Evaluate"
	dependenciesMethod = "/" + ServiceName + "/Dependencies"
)

// FormulaServer is the server side of FormulaService.
type FormulaServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Dependencies(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FormulaServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: unaryHandler(evaluateMethod, FormulaServer.Evaluate)},
		{MethodName: "Dependencies", Handler: unaryHandler(dependenciesMethod, FormulaServer.Dependencies)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grid/formula/v1/formula.proto",
}

func unaryHandler(fullMethod string, call func(FormulaServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FormulaServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FormulaServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Server implements FormulaService over a store.
type Server struct {
	store *store.Store
	calc  *calc.Calculator
	grpc  *grpc.Server
}

// New creates a new gRPC server wrapping the given store and calculator.
func New(s *store.Store, c *calc.Calculator) *Server {
	srv := &Server{
		store: s,
		calc:  c,
	}

	gs := grpc.NewServer()
	gs.RegisterService(&serviceDesc, srv)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves gRPC requests on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop gracefully stops the gRPC server.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

// Evaluate takes {formula, anchor} and returns the ParseResults record.
func (s *Server) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text, anchor, err := formulaArgs(req)
	if err != nil {
		return nil, err
	}
	return toStruct(s.calc.Parse(text, anchor, s.store))
}

// Dependencies takes {formula, anchor} and returns {dependencies: [...]}
// with each reference in its sheet-qualified A1 form.
func (s *Server) Dependencies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text, anchor, err := formulaArgs(req)
	if err != nil {
		return nil, err
	}

	refs, err := s.calc.Dependencies(text, anchor)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid formula: %v", err)
	}
	deps := make([]any, len(refs))
	for i, ref := range refs {
		deps[i] = ref.String()
	}
	out, err := structpb.NewStruct(map[string]any{"dependencies": deps})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func formulaArgs(req *structpb.Struct) (string, sheet.CellPosition, error) {
	fields := req.GetFields()
	text := fields["formula"].GetStringValue()

	anchor := calc.BasePosition
	if a := fields["anchor"].GetStringValue(); a != "" {
		var err error
		anchor, err = sheet.ParsePosition(a, calc.BasePosition.Sheet)
		if err != nil {
			return "", sheet.CellPosition{}, status.Errorf(codes.InvalidArgument, "invalid anchor: %v", err)
		}
	}
	return text, anchor, nil
}

// toStruct converts v through its JSON form, so omitted fields stay absent.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Client calls FormulaService on a remote server.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient creates a Client over conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Evaluate evaluates formula at anchor on the server. An empty anchor
// means Sheet1!A1.
func (c *Client) Evaluate(ctx context.Context, formula, anchor string) (*structpb.Struct, error) {
	return c.call(ctx, evaluateMethod, formula, anchor)
}

// Dependencies lists the references formula reads.
func (c *Client) Dependencies(ctx context.Context, formula, anchor string) ([]string, error) {
	out, err := c.call(ctx, dependenciesMethod, formula, anchor)
	if err != nil {
		return nil, err
	}
	var deps []string
	for _, v := range out.GetFields()["dependencies"].GetListValue().GetValues() {
		deps = append(deps, v.GetStringValue())
	}
	return deps, nil
}

func (c *Client) call(ctx context.Context, method, formula, anchor string) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"formula": formula, "anchor": anchor})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}
