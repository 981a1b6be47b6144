package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ConsoleServiceName is the fully-qualified name of the console service.
const ConsoleServiceName = "rjs.v1.ConsoleService"

const (
	ConsoleServiceStartProcedure       = "/rjs.v1.ConsoleService/Start"
	ConsoleServiceConnectProcedure     = "/rjs.v1.ConsoleService/Connect"
	ConsoleServiceDisconnectProcedure  = "/rjs.v1.ConsoleService/Disconnect"
	ConsoleServiceRunMainLoopProcedure = "/rjs.v1.ConsoleService/RunMainLoop"
	ConsoleServiceRunAsyncProcedure    = "/rjs.v1.ConsoleService/RunAsync"
)

// ConsoleServiceHandler is implemented by the server.
//
// RunMainLoop exchanges item batches of the client's slot; it blocks until
// the exchange has something for the client. RunAsync carries pings,
// control requests and file transfers and never waits for the engine.
type ConsoleServiceHandler interface {
	Start(context.Context, *connect.Request[StartRequest]) (*connect.Response[StartResponse], error)
	Connect(context.Context, *connect.Request[ConnectRequest]) (*connect.Response[ConnectResponse], error)
	Disconnect(context.Context, *connect.Request[DisconnectRequest]) (*connect.Response[DisconnectResponse], error)
	RunMainLoop(context.Context, *connect.Request[CallRequest]) (*connect.Response[CallResponse], error)
	RunAsync(context.Context, *connect.Request[CallRequest]) (*connect.Response[CallResponse], error)
}

// NewConsoleServiceHandler builds an HTTP handler serving svc with the rjs
// codec. It returns the path to mount it on.
func NewConsoleServiceHandler(svc ConsoleServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	start := connect.NewUnaryHandler(ConsoleServiceStartProcedure, svc.Start, opts...)
	conn := connect.NewUnaryHandler(ConsoleServiceConnectProcedure, svc.Connect, opts...)
	disconnect := connect.NewUnaryHandler(ConsoleServiceDisconnectProcedure, svc.Disconnect, opts...)
	mainLoop := connect.NewUnaryHandler(ConsoleServiceRunMainLoopProcedure, svc.RunMainLoop, opts...)
	async := connect.NewUnaryHandler(ConsoleServiceRunAsyncProcedure, svc.RunAsync, opts...)
	return "/" + ConsoleServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ConsoleServiceStartProcedure:
			start.ServeHTTP(w, r)
		case ConsoleServiceConnectProcedure:
			conn.ServeHTTP(w, r)
		case ConsoleServiceDisconnectProcedure:
			disconnect.ServeHTTP(w, r)
		case ConsoleServiceRunMainLoopProcedure:
			mainLoop.ServeHTTP(w, r)
		case ConsoleServiceRunAsyncProcedure:
			async.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ConsoleServiceClient calls a console service.
type ConsoleServiceClient struct {
	start       *connect.Client[StartRequest, StartResponse]
	connect     *connect.Client[ConnectRequest, ConnectResponse]
	disconnect  *connect.Client[DisconnectRequest, DisconnectResponse]
	runMainLoop *connect.Client[CallRequest, CallResponse]
	runAsync    *connect.Client[CallRequest, CallResponse]
}

// NewConsoleServiceClient returns a client for the service at baseURL, for
// example "http://localhost:8765".
func NewConsoleServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ConsoleServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &ConsoleServiceClient{
		start:       connect.NewClient[StartRequest, StartResponse](httpClient, baseURL+ConsoleServiceStartProcedure, opts...),
		connect:     connect.NewClient[ConnectRequest, ConnectResponse](httpClient, baseURL+ConsoleServiceConnectProcedure, opts...),
		disconnect:  connect.NewClient[DisconnectRequest, DisconnectResponse](httpClient, baseURL+ConsoleServiceDisconnectProcedure, opts...),
		runMainLoop: connect.NewClient[CallRequest, CallResponse](httpClient, baseURL+ConsoleServiceRunMainLoopProcedure, opts...),
		runAsync:    connect.NewClient[CallRequest, CallResponse](httpClient, baseURL+ConsoleServiceRunAsyncProcedure, opts...),
	}
}

func (c *ConsoleServiceClient) Start(ctx context.Context, req *StartRequest) (*StartResponse, error) {
	return unary(ctx, c.start, req)
}

func (c *ConsoleServiceClient) Connect(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error) {
	return unary(ctx, c.connect, req)
}

func (c *ConsoleServiceClient) Disconnect(ctx context.Context, req *DisconnectRequest) (*DisconnectResponse, error) {
	return unary(ctx, c.disconnect, req)
}

func (c *ConsoleServiceClient) RunMainLoop(ctx context.Context, req *CallRequest) (*CallResponse, error) {
	return unary(ctx, c.runMainLoop, req)
}

func (c *ConsoleServiceClient) RunAsync(ctx context.Context, req *CallRequest) (*CallResponse, error) {
	return unary(ctx, c.runAsync, req)
}

func unary[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
