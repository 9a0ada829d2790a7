package domain

import "github.com/google/uuid"

// Room and RoomType come from the catalog service and are read-only here.

type Room struct {
	ID          uuid.UUID
	RoomTypeID  uuid.UUID
	Number      string
	Accessible  bool
	PetFriendly bool
	NonSmoking  bool
}

type RoomType struct {
	ID          uuid.UUID
	Name        string
	NightlyRate int64 // minor currency units per night
	Capacity    int
}
