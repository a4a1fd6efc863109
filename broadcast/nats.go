package broadcast

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/network"
)

// Connect 连接 NATS，断线后无限重连
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("marketgame"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// NATSBroadcaster publishes room broadcasts on <prefix>.room.<roomID> and
// relays everything received on <prefix>.room.* to local sessions. Every
// server instance sharing one room store subscribes, so a room's players
// hear its events whichever instance they are connected to.
type NATSBroadcaster struct {
	conn   *nats.Conn
	prefix string
	local  *RoomBroadcaster
	sub    *nats.Subscription
}

func NewNATSBroadcaster(conn *nats.Conn, prefix string, local *RoomBroadcaster) (*NATSBroadcaster, error) {
	b := &NATSBroadcaster{conn: conn, prefix: prefix, local: local}
	sub, err := conn.Subscribe(b.subject("*"), b.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", b.subject("*"), err)
	}
	b.sub = sub
	return b, nil
}

func (b *NATSBroadcaster) subject(roomID string) string {
	return b.prefix + ".room." + roomID
}

func (b *NATSBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	return b.conn.Publish(b.subject(roomID), packet)
}

func (b *NATSBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	return b.local.BroadcastToAll(msgID, data)
}

// SendToPlayer replies go to the sender's own connection, which is always
// local.
func (b *NATSBroadcaster) SendToPlayer(roomID, nickname string, msgID uint16, data []byte) error {
	return b.local.SendToPlayer(roomID, nickname, msgID, data)
}

func (b *NATSBroadcaster) handle(msg *nats.Msg) {
	roomID := strings.TrimPrefix(msg.Subject, b.prefix+".room.")
	packet, err := network.Decode(msg.Data)
	if err != nil {
		logger.Log.Warnf("Dropping malformed relay on %s: %v", msg.Subject, err)
		return
	}
	if err := b.local.BroadcastToRoom(roomID, packet.MsgID, packet.Data); err != nil && err != ErrRoomNotFound {
		logger.Log.Warnf("Relay to room %s failed: %v", roomID, err)
	}
}

func (b *NATSBroadcaster) Close() error {
	if b.sub != nil {
		return b.sub.Unsubscribe()
	}
	return nil
}
