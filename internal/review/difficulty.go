package review

import "regexp"

// Difficulty is the declared review difficulty tag read from a blueprint,
// driving the escalation decision in §4.4.4.
type Difficulty string

const (
	DifficultyFast   Difficulty = "fast"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var difficultyTagPattern = regexp.MustCompile(`(?im)^@difficulty\s+(\w+)\s*$`)

// parseDifficulty extracts the @difficulty tag from a blueprint's text.
// Its absence is treated the same as "medium" or "hard" (escalation
// eligible), per §4.4.4's "or absent" clause.
func parseDifficulty(blueprint string) Difficulty {
	m := difficultyTagPattern.FindStringSubmatch(blueprint)
	if m == nil {
		return DifficultyMedium
	}
	switch Difficulty(m[1]) {
	case DifficultyFast:
		return DifficultyFast
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}
