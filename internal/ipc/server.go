package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"shadowplay/internal/daemon"
	"shadowplay/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Shadowplay", srv); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts RPC connections until the context is cancelled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("mirroring start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "mirroring started"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("mirroring stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockPath
	resp.IdentityDBPath = status.IdentityDBPath
	resp.Snapshot = status.Snapshot
	resp.CacheTotal = status.CacheTotal
	resp.CacheResolved = status.CacheResolved
	return nil
}

func (s *service) CacheList(_ CacheListRequest, resp *CacheListResponse) error {
	records, err := s.daemon.ListIdentities(s.ctx)
	if err != nil {
		return err
	}
	resp.Entries = make([]CacheEntry, 0, len(records))
	for _, rec := range records {
		resp.Entries = append(resp.Entries, CacheEntry{
			FolderPath: rec.FolderPath,
			Resolved:   rec.Resolved,
			Source:     rec.Source,
			SourceID:   rec.SourceID,
			Title:      rec.Title,
			SearchTerm: rec.SearchTerm,
			Score:      rec.Score,
			CoverFile:  rec.CoverFile,
			UpdatedAt:  rec.UpdatedAt,
		})
	}
	return nil
}

func (s *service) CacheInvalidate(req CacheInvalidateRequest, resp *CacheInvalidateResponse) error {
	if req.FolderPath == "" {
		return errors.New("folder path required")
	}
	removed, err := s.daemon.InvalidateIdentity(s.ctx, req.FolderPath)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) CacheClear(_ CacheClearRequest, resp *CacheClearResponse) error {
	removed, err := s.daemon.ClearIdentities(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	success, message, err := s.daemon.TestNotification(s.ctx)
	if err != nil {
		return err
	}
	resp.Success = success
	resp.Message = message
	return nil
}
