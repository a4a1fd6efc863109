package models

// RoomStatus 表示房间的业务状态
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "WAITING"
	RoomPlaying  RoomStatus = "PLAYING"
	RoomFinished RoomStatus = "FINISHED"
)

// Room is the persisted unit of one match. Version is owned by the store
// and only changes through a compare-and-swap save.
type Room struct {
	ID         string     `json:"id"`
	Status     RoomStatus `json:"status"`
	Version    int64      `json:"version"`
	Members    []string   `json:"members"`
	MaxPlayers int        `json:"maxPlayers"`
	Game       *Game      `json:"game,omitempty"`
}

func (r *Room) HasMember(nickname string) bool {
	for _, m := range r.Members {
		if m == nickname {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the room and its game.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Members = append([]string(nil), r.Members...)
	c.Game = r.Game.Clone()
	return &c
}
