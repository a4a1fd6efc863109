package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/wfunc/marketgame/broadcast"
	"github.com/wfunc/marketgame/config"
	"github.com/wfunc/marketgame/dispatch"
	"github.com/wfunc/marketgame/engine"
	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/monitor"
	"github.com/wfunc/marketgame/network"
	"github.com/wfunc/marketgame/persistence"
	"github.com/wfunc/marketgame/room"
	gamerpc "github.com/wfunc/marketgame/rpc"
	"github.com/wfunc/marketgame/services"
	"github.com/wfunc/marketgame/session"
	"github.com/wfunc/marketgame/timer"
)

const (
	heartbeatInterval = 30 * time.Second
	requestTimeout    = 5 * time.Second
)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	roomService    *services.RoomService
	sessionService *services.SessionService
	engine         *engine.Engine
	dispatcher     *dispatch.Dispatcher
	broadcaster    broadcast.Broadcaster
	natsRelay      *broadcast.NATSBroadcaster
	timers         *timer.TimerManager
	rpcServer      *gamerpc.Server
	monitor        *monitor.Monitor
	maxPlayers     int
	httpServer     *http.Server
	mutex          sync.Mutex
	shutdownChan   chan struct{}
}

// NewGameServer wires the game stack on top of store. natsConn may be nil,
// in which case broadcasts only reach sessions of this instance.
func NewGameServer(cfg *config.Config, store persistence.RoomStore, mon *monitor.Monitor, natsConn *nats.Conn) (*GameServer, error) {
	settings := cfg.GameSettings()
	policy := persistence.RetryPolicy{
		MaxAttempts: cfg.Game.MaxUpdateAttempts,
		BaseDelay:   cfg.Game.RetryBaseDelay,
	}

	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		sessionManager: session.NewManager(),
		roomService:    services.NewRoomService(store, policy),
		sessionService: services.NewSessionService(store, settings, policy),
		timers:         timer.NewTimerManager(100 * time.Millisecond),
		monitor:        mon,
		maxPlayers:     settings.MaxPlayers,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.engine = engine.New(store,
		engine.WithSettings(settings),
		engine.WithRetryPolicy(policy),
		engine.WithMonitor(mon),
	)
	s.dispatcher = dispatch.NewDispatcher(s.engine, mon)
	s.roomManager = room.NewRoomManager(s.engine, s.timers, cfg.Game.TickInterval, mon)

	// 初始化广播器
	local := broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)
	s.broadcaster = local
	if natsConn != nil {
		relay, err := broadcast.NewNATSBroadcaster(natsConn, cfg.NATS.SubjectPrefix, local)
		if err != nil {
			return nil, err
		}
		s.natsRelay = relay
		s.broadcaster = relay
	}
	s.roomManager.SetBroadcaster(s.broadcaster)

	// 初始化RPC服务器
	if cfg.Server.RPCAddress != "" {
		gameService := gamerpc.NewGameService(s.sessionService, s.engine, s.roomManager)
		rpcServer, err := gamerpc.NewServer(cfg.Server.RPCAddress, gameService)
		if err != nil {
			return nil, err
		}
		s.rpcServer = rpcServer
	}

	return s, nil
}

func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

func (s *GameServer) Start() error {
	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}

	s.mutex.Lock()
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	srv := s.httpServer
	s.mutex.Unlock()

	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	close(s.shutdownChan)
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
	s.roomManager.Close()
	s.timers.Stop()
	if s.natsRelay != nil {
		s.natsRelay.Close()
	}

	s.mutex.Lock()
	srv := s.httpServer
	s.mutex.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s after %s, session ID: %s", sess.Remote(), sess.Age(time.Now()).Round(time.Second), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.detach(sess)
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var err error
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Touch()
		err = sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeCreateRoom:
		err = s.handleCreateRoom(ctx, sess, packet)
	case network.MsgTypeJoinRoom:
		err = s.handleJoinRoom(ctx, sess, packet)
	case network.MsgTypeLeaveRoom:
		err = s.handleLeaveRoom(ctx, sess)
	case network.MsgTypeStartGame:
		err = s.handleStartGame(ctx, sess)
	case network.MsgTypeCommand:
		err = s.handleCommand(ctx, sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}

	if err != nil {
		s.replyError(sess, err)
	}
}

// replyError 错误只回复给发送者
func (s *GameServer) replyError(sess *session.Session, err error) {
	if models.CodeOf(err) == "" {
		logger.Log.Errorf("Session %s request failed: %v", sess.GetID(), err)
	}
	data, _ := json.Marshal(dispatch.ErrorReply(err))
	sess.Send(network.MsgTypeError, data)
}

type roomRequest struct {
	RoomID     string `json:"roomId"`
	Nickname   string `json:"nickname"`
	MaxPlayers int    `json:"maxPlayers"`
}

func decodeRequest(packet *network.Packet) (roomRequest, error) {
	var req roomRequest
	if len(packet.Data) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return req, models.Reject(models.ErrRequest, "bad request: %v", err)
	}
	return req, nil
}

func (s *GameServer) handleCreateRoom(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	req, err := decodeRequest(packet)
	if err != nil {
		return err
	}
	if req.RoomID == "" {
		req.RoomID = uuid.New().String()
	}
	if req.MaxPlayers <= 0 || req.MaxPlayers > s.maxPlayers {
		req.MaxPlayers = s.maxPlayers
	}

	record, err := s.roomService.OpenRoom(ctx, req.RoomID, req.Nickname, req.MaxPlayers)
	if err != nil {
		return err
	}
	s.attach(sess, record, req.Nickname)

	logger.Log.Infof("Session %s created room %s", sess.GetID(), record.ID)
	return s.sendRoomState(sess, record)
}

func (s *GameServer) handleJoinRoom(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	req, err := decodeRequest(packet)
	if err != nil {
		return err
	}
	if req.RoomID == "" {
		return models.Reject(models.ErrRequest, "roomId is required")
	}

	record, err := s.roomService.JoinRoom(ctx, req.RoomID, req.Nickname)
	if err != nil {
		return err
	}
	if !s.attach(sess, record, req.Nickname) {
		return models.Reject(models.ErrRoomFull, "room %s", record.ID)
	}

	if record.Game != nil {
		// 断线重连
		if err := s.engine.SetConnected(ctx, record.ID, req.Nickname, true); err != nil {
			return err
		}
		s.roomManager.StartClock(record.ID)
	}

	logger.Log.Infof("Session %s joined room %s as %s", sess.GetID(), record.ID, req.Nickname)
	return s.broadcastRoomState(record)
}

func (s *GameServer) handleLeaveRoom(ctx context.Context, sess *session.Session) error {
	nickname, roomID := sess.Player()
	if roomID == "" {
		return nil
	}
	s.detach(sess)

	record, err := s.roomService.LeaveRoom(ctx, roomID, nickname)
	if err != nil {
		return err
	}
	return s.broadcastRoomState(record)
}

func (s *GameServer) handleStartGame(ctx context.Context, sess *session.Session) error {
	_, roomID := sess.Player()
	if roomID == "" {
		return models.Reject(models.ErrRequest, "not in a room")
	}

	started, err := s.sessionService.StartMatch(ctx, roomID, nil)
	if err != nil {
		return err
	}

	nickname, _ := sess.Player()
	s.roomManager.Publish(dispatch.GameInitialized(started, nickname))
	s.roomManager.StartClock(roomID)
	return nil
}

func (s *GameServer) handleCommand(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	var cmd dispatch.Command
	if err := json.Unmarshal(packet.Data, &cmd); err != nil {
		return models.Reject(models.ErrRequest, "bad command: %v", err)
	}
	// 已加入房间的会话以绑定的身份发送命令
	if nickname, roomID := sess.Player(); roomID != "" {
		cmd.RoomID = roomID
		cmd.Sender = nickname
	}

	ev, err := s.dispatcher.Handle(ctx, &cmd)
	if err != nil {
		return err
	}
	s.roomManager.Publish(ev)
	return nil
}

// attach 将会话加入在线房间
func (s *GameServer) attach(sess *session.Session, record *models.Room, nickname string) bool {
	live := s.roomManager.GetOrCreateRoom(record.ID, record.MaxPlayers)
	return live.AddPlayer(sess, nickname)
}

// detach removes the session from its live room and, when it was the
// player's last connection, marks the player disconnected.
func (s *GameServer) detach(sess *session.Session) {
	nickname, roomID := sess.Player()
	if roomID == "" {
		return
	}
	if live, exists := s.roomManager.GetRoom(roomID); exists {
		live.RemovePlayer(sess.GetID())
		if live.PlayerCount() == 0 {
			s.roomManager.RemoveRoom(roomID)
		}
	}
	if len(s.sessionManager.GetByNickname(roomID, nickname)) > 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	err := s.engine.SetConnected(ctx, roomID, nickname, false)
	if err != nil && !errors.Is(err, models.ErrGameNotFound) && !errors.Is(err, models.ErrPlayerNotFound) {
		logger.Log.Warnf("Failed to mark %s disconnected in room %s: %v", nickname, roomID, err)
	}
}

func (s *GameServer) sendRoomState(sess *session.Session, record *models.Room) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return sess.Send(network.MsgTypeRoomState, data)
}

func (s *GameServer) broadcastRoomState(record *models.Room) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.broadcaster.BroadcastToRoom(record.ID, network.MsgTypeRoomState, data)
}
