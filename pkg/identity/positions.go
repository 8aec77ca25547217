package identity

import (
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// positionVocabulary covers both feeds: the points feed reports numeric
// element types, the stats feed reports names and abbreviations.
var positionVocabulary = map[string]models.PositionClass{
	"1": models.PositionGK, "gk": models.PositionGK, "gkp": models.PositionGK, "goalkeeper": models.PositionGK,
	"2": models.PositionDEF, "def": models.PositionDEF, "d": models.PositionDEF, "defender": models.PositionDEF,
	"3": models.PositionMID, "mid": models.PositionMID, "m": models.PositionMID, "midfielder": models.PositionMID,
	"4": models.PositionFWD, "fwd": models.PositionFWD, "f": models.PositionFWD, "fw": models.PositionFWD,
	"forward": models.PositionFWD, "s": models.PositionFWD, "striker": models.PositionFWD,
}

// PositionClassOf maps a raw position reference into the shared vocabulary.
// Unknown references return PositionUnknown rather than failing: position is
// corroboration for matching, not identity.
func PositionClassOf(positionRef string) models.PositionClass {
	key := strings.ToLower(strings.TrimSpace(positionRef))
	if class, ok := positionVocabulary[key]; ok {
		return class
	}
	return models.PositionUnknown
}
