package domain

type (
	RoomID   int64
	RoomCode string
)

// Room is the snapshot of a room as resolved by the directory
// collaborator. The core never mutates it.
type Room struct {
	ID           RoomID
	Code         RoomCode
	Title        string
	HostID       UserID
	IsActive     bool
	Participants []UserID
}

func (r *Room) HasParticipant(id UserID) bool {
	for _, pid := range r.Participants {
		if pid == id {
			return true
		}
	}
	return false
}

func (r *Room) IsHost(id UserID) bool { return r.HostID == id }
