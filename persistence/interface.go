// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/cardroom/models"
)

// Store persists accounts, finished-session records and room snapshots.
// Snapshot and record writes are advisory: failures are logged by callers
// and never fail the room action.
type Store interface {
	CreateUser(username, passwordHash string) error
	GetUserHash(username string) (string, error)
	SaveGameRecord(record *models.GameRecord) error
	SaveRoomSnapshot(roomID, mode, status string, players []models.PlayerView) error
	Close() error
}

var (
	ErrRecordNotFound = fmt.Errorf("record not found")
	ErrUserExists     = fmt.Errorf("user already exists")
)
