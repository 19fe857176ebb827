package matching

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"

	"github.com/titanbuild/vistalink/internal/domain"
)

// jaroWinkler is a reusable metric instance; the metric itself is stateless.
var jaroWinkler = metrics.NewJaroWinkler()

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

// amountTolerance is the relative band inside which two amounts still count
// as similar. Beyond 25% apart the comparator yields zero.
const amountTolerance = 0.25

// dateTolerance is the window inside which two dates still count as similar.
const dateTolerance = 60 * 24 * time.Hour

// normalizeText lowercases, strips punctuation and collapses whitespace so
// the string metrics compare meaningful tokens.
func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// normalizeIdentifier canonicalizes a natural key for exact comparison.
func normalizeIdentifier(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// stringSimilarity blends Jaro-Winkler, normalized Levenshtein and token-set
// overlap into a single [0,1] score. Empty input on either side yields zero.
func stringSimilarity(a, b string) float64 {
	na, nb := normalizeText(a), normalizeText(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	jw := strutil.Similarity(na, nb, jaroWinkler)
	lev := levenshteinSimilarity(na, nb)
	tok := tokenOverlap(na, nb)

	return clamp01(0.5*jw + 0.3*lev + 0.2*tok)
}

func levenshteinSimilarity(a, b string) float64 {
	maxLen := math.Max(float64(len(a)), float64(len(b)))
	if maxLen == 0 {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/maxLen
}

// tokenOverlap is the Jaccard similarity of the whitespace token sets.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(s) {
		set[token] = true
	}
	return set
}

// amountSimilarity scores numeric closeness inside a relative tolerance band.
func amountSimilarity(a, b *float64) float64 {
	if a == nil || b == nil {
		return 0
	}
	if *a == *b {
		return 1
	}
	denom := math.Max(math.Abs(*a), math.Abs(*b))
	if denom == 0 {
		return 1
	}
	relative := math.Abs(*a-*b) / denom
	if relative >= amountTolerance {
		return 0
	}
	return 1 - relative/amountTolerance
}

// dateSimilarity decays linearly to zero over the tolerance window.
func dateSimilarity(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return 0
	}
	gap := a.Sub(*b)
	if gap < 0 {
		gap = -gap
	}
	if gap >= dateTolerance {
		return 0
	}
	return 1 - float64(gap)/float64(dateTolerance)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Comparator scores one field pairing between a Vista record and a titan
// record. present must be false when either side lacks the field, so the
// weight can be renormalized away instead of dragging the score down.
type Comparator struct {
	Field   string
	Weight  float64
	Compare func(v domain.VistaRecord, t domain.TitanRecord) (score float64, present bool)
}

func compareNumber(v domain.VistaRecord, t domain.TitanRecord) (float64, bool) {
	if strings.TrimSpace(v.ExternalID) == "" || strings.TrimSpace(t.Number) == "" {
		return 0, false
	}
	if normalizeIdentifier(v.ExternalID) == normalizeIdentifier(t.Number) {
		return 1, true
	}
	return stringSimilarity(v.ExternalID, t.Number), true
}

func compareName(v domain.VistaRecord, t domain.TitanRecord) (float64, bool) {
	if strings.TrimSpace(v.Name) == "" || strings.TrimSpace(t.Name) == "" {
		return 0, false
	}
	return stringSimilarity(v.Name, t.Name), true
}

func compareAmount(v domain.VistaRecord, t domain.TitanRecord) (float64, bool) {
	if v.Amount == nil || t.Amount == nil {
		return 0, false
	}
	return amountSimilarity(v.Amount, t.Amount), true
}

func compareLocation(v domain.VistaRecord, t domain.TitanRecord) (float64, bool) {
	if strings.TrimSpace(v.Location) == "" || strings.TrimSpace(t.Location) == "" {
		return 0, false
	}
	return stringSimilarity(v.Location, t.Location), true
}

func compareEmail(v domain.VistaRecord, t domain.TitanRecord) (float64, bool) {
	a := strings.ToLower(strings.TrimSpace(v.Email))
	b := strings.ToLower(strings.TrimSpace(t.Email))
	if a == "" || b == "" {
		return 0, false
	}
	if a == b {
		return 1, true
	}
	return 0, true
}

func comparePhone(v domain.VistaRecord, t domain.TitanRecord) (float64, bool) {
	a := digitsOnly(v.Phone)
	b := digitsOnly(t.Phone)
	if a == "" || b == "" {
		return 0, false
	}
	if a == b {
		return 1, true
	}
	return 0, true
}

func compareStartDate(v domain.VistaRecord, t domain.TitanRecord) (float64, bool) {
	if v.StartDate == nil || t.StartDate == nil {
		return 0, false
	}
	return dateSimilarity(v.StartDate, t.StartDate), true
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
