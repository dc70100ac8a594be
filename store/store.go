// Package store holds the gorm-backed persistence of rooms, member sets,
// the join-request ledger and user profiles.
package store

import "gorm.io/gorm"

// Store bundles the repositories that share one database handle.
type Store struct {
	Rooms    *RoomStore
	Requests *JoinRequestStore
	Users    *UserStore
	Tx       *TxManager
}

func New(db *gorm.DB) *Store {
	return &Store{
		Rooms:    NewRoomStore(db),
		Requests: NewJoinRequestStore(db),
		Users:    NewUserStore(db),
		Tx:       NewTxManager(db),
	}
}
