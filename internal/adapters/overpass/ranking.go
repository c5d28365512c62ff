package overpass

import (
	"detour-route-service/internal/domain"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	tagWeight  = 0.85
	nameWeight = 0.15
)

type matchMode int

const (
	matchUnknown matchMode = iota
	matchExact
	matchAnyValue
	matchKeyOnly
)

var (
	bracketKV  = regexp.MustCompile(`^\[\s*"([^"]+)"\s*=\s*"([^"]+)"\s*\]$`)
	bracketKey = regexp.MustCompile(`^\[\s*"([^"]+)"\s*\]$`)
)

// NormalizeFilter turns a tag query into an Overpass filter segment:
//
//	amenity=school     -> ["amenity"="school"]
//	["tourism"="zoo"]  -> ["tourism"="zoo"]
//	landuse, landuse=* -> ["landuse"]
func NormalizeFilter(q string) string {
	s := strings.TrimSpace(q)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return s
	}
	if key, val, ok := strings.Cut(s, "="); ok {
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if key == "" {
			return ""
		}
		if val == "" || val == "*" {
			return fmt.Sprintf(`["%s"]`, key)
		}
		return fmt.Sprintf(`["%s"="%s"]`, key, val)
	}
	if s == "" {
		return ""
	}
	return fmt.Sprintf(`["%s"]`, s)
}

func parseQuery(q string) (key, value string, mode matchMode) {
	s := strings.TrimSpace(q)
	if m := bracketKV.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1]), strings.ToLower(strings.TrimSpace(m[2])), matchExact
	}
	if m := bracketKey.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1]), "", matchKeyOnly
	}
	if k, v, ok := strings.Cut(s, "="); ok {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if v == "" || v == "*" {
			return k, "", matchAnyValue
		}
		return k, strings.ToLower(v), matchExact
	}
	if s != "" {
		return s, "", matchKeyOnly
	}
	return "", "", matchUnknown
}

// tagScore is 1 when the element's tags satisfy the query, else 0.
func tagScore(tags map[string]string, query string) float64 {
	key, value, mode := parseQuery(query)
	if key == "" {
		return 0
	}
	v, ok := tags[key]
	if !ok {
		return 0
	}
	switch mode {
	case matchKeyOnly, matchAnyValue:
		return 1
	case matchExact:
		if strings.ToLower(v) == value {
			return 1
		}
	}
	return 0
}

// nameScore is the share of query tokens that also occur in name.
func nameScore(name, query string) float64 {
	nameTokens := tokens(name)
	queryTokens := tokens(query)
	if len(nameTokens) == 0 || len(queryTokens) == 0 {
		return 0
	}

	overlap := 0
	for t := range queryTokens {
		if _, ok := nameTokens[t]; ok {
			overlap++
		}
	}
	return math.Min(1, float64(overlap)/float64(len(queryTokens)))
}

func tokens(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[t] = struct{}{}
	}
	return out
}

// rank assigns relevance scores on a 0..10 scale and sorts descending.
func rank(ws []domain.Waypoint, query string) []domain.Waypoint {
	out := make([]domain.Waypoint, 0, len(ws))
	for _, w := range ws {
		tags, _ := w.Metadata["tags"].(map[string]string)
		// Synthetic names must not earn name overlap.
		score := tagWeight*tagScore(tags, query) + nameWeight*nameScore(tags["name"], query)
		w.RelevanceScore = domain.Round6(score * 10)
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	return out
}

func decodeJSON(r io.Reader, dst any) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("decode overpass response: %w", err)
	}
	return nil
}
