package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/pkg/errors"

	"github.com/chazu/rjs/adapter"
	"github.com/chazu/rjs/api"
	"github.com/chazu/rjs/exchange"
	"github.com/chazu/rjs/item"
)

// ConsoleService implements api.ConsoleServiceHandler on top of one engine
// context.
type ConsoleService struct {
	ctx      *adapter.Context
	sessions *SessionStore
	files    *FileStore
	profile  string
}

var _ api.ConsoleServiceHandler = (*ConsoleService)(nil)

// NewConsoleService creates a ConsoleService. profile is evaluated before
// the profile of a Start request.
func NewConsoleService(ctx *adapter.Context, sessions *SessionStore, files *FileStore, profile string) *ConsoleService {
	return &ConsoleService{
		ctx:      ctx,
		sessions: sessions,
		files:    files,
		profile:  profile,
	}
}

// Start starts the engine. Starting a running engine is reported with an
// info status.
func (s *ConsoleService) Start(
	ctx context.Context,
	req *connect.Request[api.StartRequest],
) (*connect.Response[api.StartResponse], error) {
	if state := s.ctx.Exchange().State(); state != exchange.NotStarted {
		return connect.NewResponse(&api.StartResponse{
			Status: item.NewStatus(item.SeverityInfo, item.CodeNone, "Engine already "+state.String()+"."),
		}), nil
	}
	profile := strings.TrimSpace(s.profile + "\n" + req.Msg.Profile)
	if err := s.ctx.Start(profile); err != nil {
		var startErr *exchange.EngineStartError
		if errors.As(err, &startErr) {
			return connect.NewResponse(&api.StartResponse{
				Status: item.NewStatus(item.SeverityError, item.CodeNone, err.Error()),
			}), nil
		}
		log.Errorf("start: %s", err.Error())
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&api.StartResponse{Status: item.OK()}), nil
}

// Connect binds the caller to a slot and returns its client token.
func (s *ConsoleService) Connect(
	ctx context.Context,
	req *connect.Request[api.ConnectRequest],
) (*connect.Response[api.ConnectResponse], error) {
	slot := int(req.Msg.Slot)
	if slot < 0 || slot >= exchange.NumSlots {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Errorf("slot %d out of range", slot))
	}
	if err := s.ctx.Exchange().Connect(slot); err != nil {
		if errors.Is(err, exchange.ErrNotRunning) {
			return nil, connect.NewError(connect.CodeFailedPrecondition, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	session, replaced := s.sessions.Create(slot, req.Msg.Name)
	if replaced != nil {
		log.Infof("client %q replaces %q on slot %d", session.Name, replaced.Name, slot)
	}
	return connect.NewResponse(&api.ConnectResponse{Token: session.Token}), nil
}

// Disconnect unbinds the client and releases its references.
func (s *ConsoleService) Disconnect(
	ctx context.Context,
	req *connect.Request[api.DisconnectRequest],
) (*connect.Response[api.DisconnectResponse], error) {
	session, err := s.session(req.Msg.Token)
	if err != nil {
		return nil, err
	}
	s.disconnect(session)
	return connect.NewResponse(&api.DisconnectResponse{}), nil
}

// disconnect ends session. It is also used by the stale sweeper.
func (s *ConsoleService) disconnect(session *Session) {
	if _, ok := s.sessions.Destroy(session.Token); !ok {
		return
	}
	if err := s.ctx.Exchange().Disconnect(session.Slot); err != nil {
		log.Debugf("disconnect slot %d: %s", session.Slot, err.Error())
	}
	if n := s.ctx.ReleaseSlot(session.Slot); n > 0 {
		log.Debugf("released %d references of slot %d", n, session.Slot)
	}
}

// RunMainLoop submits a batch of the client's slot and returns the next
// batch for it, or a status.
func (s *ConsoleService) RunMainLoop(
	ctx context.Context,
	req *connect.Request[api.CallRequest],
) (*connect.Response[api.CallResponse], error) {
	session, env, err := s.call(req.Msg)
	if err != nil {
		return nil, err
	}
	if env.Kind != item.KindBatch {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Errorf("RunMainLoop expects a batch, got %s", env.Kind))
	}
	resp := s.ctx.Exchange().Submit(session.Slot, env.Items)
	if resp.Status != nil {
		return connect.NewResponse(api.NewCallResponse(item.StatusEnvelope(resp.Status))), nil
	}
	return connect.NewResponse(api.NewCallResponse(item.BatchEnvelope(resp.Items, resp.Busy))), nil
}

// RunAsync serves pings, control requests and file transfers.
func (s *ConsoleService) RunAsync(
	ctx context.Context,
	req *connect.Request[api.CallRequest],
) (*connect.Response[api.CallResponse], error) {
	session, env, err := s.call(req.Msg)
	if err != nil {
		return nil, err
	}
	x := s.ctx.Exchange()
	var out *item.Envelope
	switch env.Kind {
	case item.KindPing:
		out = item.StatusEnvelope(x.Ping(session.Slot))
	case item.KindCtrl:
		switch env.Ctrl {
		case item.CtrlCancel:
			out = item.StatusEnvelope(x.Cancel())
		case item.CtrlHotMode:
			out = item.StatusEnvelope(x.RequestHotMode())
		}
	case item.KindFile:
		out = s.files.Transfer(env.File)
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Errorf("RunAsync does not accept %s", env.Kind))
	}
	return connect.NewResponse(api.NewCallResponse(out)), nil
}

// call resolves the session of a call and decodes its envelope.
func (s *ConsoleService) call(msg *api.CallRequest) (*Session, *item.Envelope, error) {
	session, err := s.session(msg.Token)
	if err != nil {
		return nil, nil, err
	}
	env, err := msg.Envelope(session.Slot)
	if err != nil {
		log.Warningf("slot %d: %s", session.Slot, err.Error())
		return nil, nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return session, env, nil
}

func (s *ConsoleService) session(token string) (*Session, error) {
	if token == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("token is required"))
	}
	session, ok := s.sessions.Get(token)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, errors.Errorf("client %q not found", token))
	}
	return session, nil
}
