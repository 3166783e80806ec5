package model

// A Score is the score of a player.
// PlayerName is a lookup key but it is not unique.
type Score struct {
	Base `json:",inline" storm:"inline"`

	PlayerName string `json:"player_name" storm:"index"`
	Score      int    `json:"score"`
}
