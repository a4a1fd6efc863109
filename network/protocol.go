package network

// 消息ID. 游戏命令与事件的数据体为 JSON
const (
	MsgTypeHeartbeat  = 1
	MsgTypeJoinRoom   = 101
	MsgTypeLeaveRoom  = 102
	MsgTypeCreateRoom = 103
	MsgTypeStartGame  = 104
	MsgTypeCommand    = 201
	MsgTypeGameEvent  = 301
	MsgTypeRoomState  = 302
	MsgTypeError      = 500
)

// headerSize: 2字节消息ID + 2字节数据长度
const headerSize = 4

// MaxPayload is the largest body a frame can carry.
const MaxPayload = 1<<16 - 1
