package room

import "time"

type Room struct {
	Id        string
	CreatedAt time.Time
}

type CreateRoomParams struct {
	RoomId    string
	CreatedAt time.Time
}
