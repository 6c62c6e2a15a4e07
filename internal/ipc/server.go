package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"audio2subs/internal/api"
	"audio2subs/internal/daemon"
	"audio2subs/internal/logging"
)

// Server answers control requests from the CLI on a Unix socket. Each
// connection speaks JSON-RPC against the AudioSubs service.
type Server struct {
	path   string
	logger *slog.Logger
	ln     net.Listener
	rpc    *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

// NewServer binds path, replacing a stale socket left by an earlier run.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc: nil daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	handlers := rpc.NewServer()
	if err := handlers.RegisterName(serviceName, &service{daemon: d, logger: logger, ctx: ctx}); err != nil {
		return nil, fmt.Errorf("register %s: %w", serviceName, err)
	}
	ln, err := listenUnix(path)
	if err != nil {
		return nil, err
	}

	serveCtx, cancel := context.WithCancel(ctx)
	return &Server{path: path, logger: logger, ln: ln, rpc: handlers, ctx: serveCtx, cancel: cancel}, nil
}

func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	return ln, nil
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("control socket listening", logging.String("socket", s.path))
	s.conns.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.conns.Done()
	for {
		conn, err := s.ln.Accept()
		switch {
		case err == nil:
			s.conns.Add(1)
			go s.serveConn(conn)
		case s.ctx.Err() != nil, errors.Is(err, net.ErrClosed):
			return
		default:
			s.logger.Warn("control socket accept failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ipc_accept_failed"),
				logging.String(logging.FieldImpact, "CLI commands may not reach the service"),
				logging.String(logging.FieldErrorHint, "check permissions on the socket directory"))
		}
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.conns.Done()
	s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Close stops accepting, waits for open connections and removes the socket.
func (s *Server) Close() {
	s.cancel()
	_ = s.ln.Close()
	s.conns.Wait()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("control socket left behind",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "the next run replaces the stale socket"),
			logging.String(logging.FieldErrorHint, "delete the socket file if it persists"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx).APIStatus()
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.logger.Info("shutdown requested over control socket",
		logging.String(logging.FieldEventType, "daemon_stop"))
	s.daemon.Stop()
	resp.Stopping = true
	return nil
}

func (s *service) StopSession(_ StopSessionRequest, resp *StopSessionResponse) error {
	if err := s.daemon.StopSession(s.ctx); err != nil {
		resp.Message = err.Error()
		return nil
	}
	resp.Stopped = true
	resp.Message = "session stopped"
	s.logger.Info("session stopped via IPC",
		logging.String(logging.FieldEventType, "session_stop"))
	return nil
}

func (s *service) Seek(req SeekRequest, resp *SeekResponse) error {
	if err := s.daemon.Seek(req.Position); err != nil {
		return err
	}
	resp.Position = req.Position
	s.logger.Debug("seek via IPC", logging.Seconds("position", req.Position))
	return nil
}

func (s *service) Position(req PositionRequest, resp *PositionResponse) error {
	if err := s.daemon.SetPosition(req.Position); err != nil {
		return err
	}
	resp.Position = req.Position
	return nil
}

func (s *service) Sessions(req SessionsRequest, resp *SessionsResponse) error {
	sessions, err := s.daemon.RecentSessions(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Sessions = api.FromSessions(sessions)
	return nil
}

func (s *service) SessionDetail(req SessionDetailRequest, resp *SessionDetailResponse) error {
	sess, attempts, err := s.daemon.SessionDetail(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Session = api.FromSession(sess)
	resp.Attempts = api.FromAttempts(attempts)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
