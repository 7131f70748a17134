package feeds

import (
	"fmt"

	"github.com/antzucaro/matchr"
)

// below this a guess is more likely to surprise than to help
const minStateSimilarity = 0.85

func fuzzyStateID(normalized string) (int64, error) {
	var mostSimilarity float64
	var mostSimilarState string

	for state := range stateIds {
		similarity := matchr.JaroWinkler(normalized, state, false)
		if similarity > mostSimilarity {
			mostSimilarity = similarity
			mostSimilarState = state
		}
	}

	if mostSimilarity < minStateSimilarity {
		return 0, fmt.Errorf("%w: %q", ErrUnknownState, normalized)
	}
	return stateIds[mostSimilarState], nil
}
