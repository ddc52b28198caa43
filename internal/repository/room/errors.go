package room

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomAlreadyExists  = errors.New("room already exists")
	ErrSeqConflict        = errors.New("event seq conflict")
	ErrEventAlreadyStored = errors.New("event already stored")
)
