package matching

import (
	"sort"

	"github.com/google/uuid"

	"github.com/titanbuild/vistalink/internal/domain"
)

// DefaultMinSimilarity is the threshold below which candidates are not
// surfaced to operators.
const DefaultMinSimilarity = 0.5

// Rank scores every Vista record against every titan record and returns, per
// Vista record, the candidates at or above minSimilarity ordered by
// similarity descending. Ties break on the titan natural key and then the
// titan id, so output is fully deterministic for a fixed input.
//
// consumed lists titan ids already exclusively linked; for one-to-one kinds
// those titans are skipped entirely.
func Rank(
	vistas []domain.VistaRecord,
	titans []domain.TitanRecord,
	profile Profile,
	minSimilarity float64,
	consumed map[uuid.UUID]bool,
) map[uuid.UUID][]domain.MatchCandidate {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	oneToOne := profile.Kind.OneToOne()
	result := make(map[uuid.UUID][]domain.MatchCandidate, len(vistas))

	for _, v := range vistas {
		var candidates []domain.MatchCandidate
		for _, t := range titans {
			if oneToOne && consumed[t.ID] {
				continue
			}
			similarity, matchedFields := Score(v, t, profile)
			if similarity < minSimilarity {
				continue
			}
			candidates = append(candidates, domain.MatchCandidate{
				VistaID:       v.ID,
				TitanID:       t.ID,
				TitanNumber:   t.Number,
				TitanName:     t.Name,
				Similarity:    similarity,
				MatchedFields: matchedFields,
			})
		}

		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Similarity != candidates[j].Similarity {
				return candidates[i].Similarity > candidates[j].Similarity
			}
			if candidates[i].TitanNumber != candidates[j].TitanNumber {
				return candidates[i].TitanNumber < candidates[j].TitanNumber
			}
			return candidates[i].TitanID.String() < candidates[j].TitanID.String()
		})

		result[v.ID] = candidates
	}

	return result
}

// ExactMatches returns the titan records whose natural key equals the Vista
// record's external id. The auto-linker acts only when exactly one is found.
func ExactMatches(v domain.VistaRecord, titans []domain.TitanRecord) []domain.TitanRecord {
	var matches []domain.TitanRecord
	for _, t := range titans {
		if ExactIdentifierMatch(v, t) {
			matches = append(matches, t)
		}
	}
	return matches
}
