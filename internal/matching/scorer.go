package matching

import "github.com/titanbuild/vistalink/internal/domain"

// Score computes the weighted similarity between a Vista record and a titan
// record in [0,1], plus the list of fields that matched strongly. Pure and
// deterministic: no clock, no randomness, no I/O.
//
// An exact external-identifier match short-circuits to 1.0 regardless of the
// other fields; the auto-linker depends on that floor.
func Score(v domain.VistaRecord, t domain.TitanRecord, profile Profile) (float64, []string) {
	if ExactIdentifierMatch(v, t) {
		return 1.0, []string{"number"}
	}

	var weightedSum, availableWeight float64
	var matched []string

	for _, cmp := range profile.Comparators {
		score, present := cmp.Compare(v, t)
		if !present {
			continue
		}
		availableWeight += cmp.Weight
		weightedSum += cmp.Weight * score
		if score >= strongFieldThreshold {
			matched = append(matched, cmp.Field)
		}
	}

	if availableWeight == 0 {
		return 0, nil
	}
	return clamp01(weightedSum / availableWeight), matched
}

// ExactIdentifierMatch reports whether both records carry the same non-empty
// natural key. This is the only condition under which the auto-linker acts.
func ExactIdentifierMatch(v domain.VistaRecord, t domain.TitanRecord) bool {
	a := normalizeIdentifier(v.ExternalID)
	b := normalizeIdentifier(t.Number)
	return a != "" && a == b
}
