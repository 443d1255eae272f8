package model

type GameStatus string

const (
	GameWaiting    GameStatus = "waiting"
	GameInProgress GameStatus = "in_progress"
	GameFinished   GameStatus = "finished"
	GameSuspended  GameStatus = "suspended"
)

func (s GameStatus) Valid() bool {
	switch s {
	case GameWaiting, GameInProgress, GameFinished, GameSuspended:
		return true
	}
	return false
}
