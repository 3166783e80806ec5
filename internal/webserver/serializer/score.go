package serializer

import (
	"github.com/mdouchement/playerdata/internal/model"
)

// Scores returns the serialized form of the given models.
func Scores(scores []*model.Score) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(scores))

	for _, score := range scores {
		sl = append(sl, Score(score))
	}

	return sl
}

// Score returns the serialized form of the given model.
func Score(score *model.Score) map[string]interface{} {
	return map[string]interface{}{
		"_id":         score.ID,
		"player_name": score.PlayerName,
		"score":       score.Score,
	}
}
