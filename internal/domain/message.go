package domain

type MessageID int64

type Message struct {
	ID      MessageID
	RoomID  RoomID
	UserID  UserID
	Content string
}
