package room

// Broadcaster fans encoded game events out to every session of a room.
// broadcast.RoomBroadcaster and broadcast.NATSBroadcaster implement it; room
// only depends on this method so the two packages do not import each other.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}
