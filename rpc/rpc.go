package rpc

import (
	"context"
	"errors"
	"io"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/marketgame/dispatch"
	"github.com/wfunc/marketgame/engine"
	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and serves the given GameService.
func NewServer(addr string, gs *GameService) (*Server, error) {
	s, err := newServer(gs)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.listener = listener
	s.address = addr
	return s, nil
}

func newServer(gs *GameService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.Register(gs); err != nil {
		return nil, err
	}
	return &Server{rpc: srv}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.ServeConn(conn)
	}
}

func (s *Server) ServeConn(conn io.ReadWriteCloser) {
	s.rpc.ServeConn(conn)
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// RoomDriver 开局后启动房间时钟并广播事件
type RoomDriver interface {
	StartClock(roomID string)
	Publish(ev *dispatch.Event)
}

// GameService exposes game control to out-of-process collaborators such as
// a lobby or an external round scheduler.
type GameService struct {
	sessions *services.SessionService
	engine   *engine.Engine
	driver   RoomDriver
	timeout  time.Duration
}

func NewGameService(sessions *services.SessionService, e *engine.Engine, driver RoomDriver) *GameService {
	return &GameService{sessions: sessions, engine: e, driver: driver, timeout: 5 * time.Second}
}

// net/rpc only carries error strings, so the rejection code leads the
// message: "STALE_ROUND: ...".
func remoteError(err error) error {
	if code := models.CodeOf(err); code != "" {
		return errors.New(string(code) + ": " + err.Error())
	}
	return err
}

type StartGameArgs struct {
	RoomID    string
	Nicknames []string
}

type RoomReply struct {
	Room *models.Room
}

func (gs *GameService) StartGame(args *StartGameArgs, reply *RoomReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	room, err := gs.sessions.StartMatch(ctx, args.RoomID, args.Nicknames)
	if err != nil {
		return remoteError(err)
	}
	if gs.driver != nil {
		gs.driver.Publish(dispatch.GameInitialized(room, dispatch.GameManagerSenderTag))
		gs.driver.StartClock(room.ID)
	}
	reply.Room = room
	return nil
}

type AdvanceRoundArgs struct {
	RoomID string
	Round  int
}

type AdvanceRoundReply struct {
	Round int
}

func (gs *GameService) AdvanceRound(args *AdvanceRoundArgs, reply *AdvanceRoundReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	out, err := gs.engine.AdvanceRound(ctx, args.RoomID, args.Round)
	if err != nil {
		return remoteError(err)
	}
	if gs.driver != nil {
		gs.driver.Publish(dispatch.RoundEvent(out))
	}
	reply.Round = out.Round
	return nil
}

type RoomArgs struct {
	RoomID string
}

type EconomicEventReply struct {
	Event        models.EconomicEvent
	InterestRate int
}

func (gs *GameService) TriggerEconomicEvent(args *RoomArgs, reply *EconomicEventReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	out, err := gs.engine.ApplyEconomicEvent(ctx, args.RoomID)
	if err != nil {
		return remoteError(err)
	}
	if gs.driver != nil {
		gs.driver.Publish(dispatch.EconomicEventApplied(out))
	}
	reply.Event = out.Event
	reply.InterestRate = out.InterestRate
	return nil
}

func (gs *GameService) GetRoom(args *RoomArgs, reply *RoomReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	room, err := gs.engine.Snapshot(ctx, args.RoomID)
	if err != nil {
		return remoteError(err)
	}
	reply.Room = room
	return nil
}
