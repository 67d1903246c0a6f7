package challenges

import (
	"blockduel/internal/game"
	"time"
)

// Entry is one open offer to play: a player waiting for an opponent in a
// given mode. SkillLevel is a snapshot taken when the entry was created.
type Entry struct {
	PlayerID    string
	DisplayName string
	SkillLevel  int
	Mode        game.Mode
	CreatedAt   time.Time
}
