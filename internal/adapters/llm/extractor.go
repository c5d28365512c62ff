package llm

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/platform/obs"
	"detour-route-service/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultFlexibilityMinutes = 10
	maxTagQueries             = 10
)

// Tags the model may choose from. Common tags are listed first so they win
// over rare ones that seldom exist in urban areas.
var DefaultCatalogue = []string{
	"leisure=park", "leisure=garden", "tourism=viewpoint", "natural=water",
	"natural=beach", "natural=coastline", "leisure=marina", "natural=peak",
	"landuse=forest", "natural=wood", "amenity=cafe", "amenity=restaurant",
	"amenity=bar", "amenity=pub", "amenity=ice_cream", "shop=bakery",
	"tourism=museum", "tourism=artwork", "tourism=attraction", "historic=monument",
	"historic=memorial", "amenity=fountain", "leisure=playground", "amenity=library",
	"amenity=place_of_worship", "shop=books", "amenity=marketplace", "leisure=nature_reserve",
}

const preferencePrompt = `Extract a short, comma-separated list of preferences from a route request.

User request:
%s

Return ONLY a comma-separated list of concise preference concepts, no other text.
Examples of concepts: "parks, viewpoints, scenic, waterfront, coffee".
Do not include avoid preferences such as avoid_tolls, avoid_stairs, avoid_hills or avoid_highways.`

const extractionPrompt = `You are a strict JSON generator.

User request:
%s

Candidate OSM tags (pick up to %d):
%s

Return ONLY valid minified JSON (no markdown, no commentary) with this schema:
{"origin":"string","destination":"string","time_flexibility_minutes":10,
"waypoint_queries":["key=value"],
"constraints":{"avoid_tolls":false,"avoid_stairs":false,"avoid_hills":false,
"avoid_highways":false,"avoid_ferries":false,"transport_mode":"walking"}}

Rules:
- waypoint_queries MUST be exact key=value entries from the candidate list.
- Make origin and destination as specific as possible and include the city or town.
- If time flexibility is not specified, set it to 10 minutes.
- transport_mode is one of "walking", "driving" or "cycling".`

type generator interface {
	Generate(ctx context.Context, prompt string, asJSON bool) (string, error)
}

// Extractor implements ports.Extractor in two model calls: a plain-text
// preference summary, then strict JSON parameters constrained to the tag
// catalogue.
type Extractor struct {
	gen       generator
	catalogue []string
	numTags   int
	log       *zap.Logger
}

func NewExtractor(gen generator, numTags int, log *zap.Logger) *Extractor {
	if numTags <= 0 || numTags > maxTagQueries {
		numTags = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{gen: gen, catalogue: DefaultCatalogue, numTags: numTags, log: log.Named("extractor")}
}

func (e *Extractor) Extract(ctx context.Context, prompt string) (_ ports.ExtractedParameters, err error) {
	defer obs.Time(ctx, e.log, "llm.Extract")(&err)

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ports.ExtractedParameters{}, fmt.Errorf("extract: empty prompt: %w", domain.ErrInvalidInput)
	}

	prefs, err := e.gen.Generate(ctx, fmt.Sprintf(preferencePrompt, prompt), false)
	if err != nil {
		e.log.Warn("preference summary failed, using raw prompt", zap.Error(err))
		prefs = prompt
	}

	var b strings.Builder
	for _, c := range e.catalogue {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteByte('\n')
	}
	raw, err := e.gen.Generate(ctx, fmt.Sprintf(extractionPrompt, prompt, e.numTags, b.String()), true)
	if err != nil {
		return ports.ExtractedParameters{}, fmt.Errorf("extract: %w", err)
	}

	params, err := ParseParameters(raw)
	if err != nil {
		return ports.ExtractedParameters{}, domain.NewProviderError("ollama", "extract", err)
	}
	params.PreferencesText = strings.TrimSpace(prefs)

	e.log.Info("parameters extracted",
		zap.String("origin", params.OriginText),
		zap.String("destination", params.DestinationText),
		zap.Strings("queries", params.TagQueries),
	)
	return params, nil
}

var fenced = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

type rawParameters struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Flexibility *float64 `json:"time_flexibility_minutes"`
	Queries     []any    `json:"waypoint_queries"`
	Constraints struct {
		AvoidTolls    bool   `json:"avoid_tolls"`
		AvoidStairs   bool   `json:"avoid_stairs"`
		AvoidHills    bool   `json:"avoid_hills"`
		AvoidHighways bool   `json:"avoid_highways"`
		AvoidFerries  bool   `json:"avoid_ferries"`
		Mode          string `json:"transport_mode"`
	} `json:"constraints"`
}

// ParseParameters reads model output that is either naked JSON, a fenced
// ```json block or JSON embedded in prose, and applies defaults.
func ParseParameters(text string) (ports.ExtractedParameters, error) {
	body := strings.TrimSpace(text)
	if m := fenced.FindStringSubmatch(body); m != nil {
		body = m[1]
	} else if i, j := strings.Index(body, "{"), strings.LastIndex(body, "}"); i >= 0 && j > i {
		body = body[i : j+1]
	} else {
		return ports.ExtractedParameters{}, errors.New("no JSON object in model output")
	}

	var raw rawParameters
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return ports.ExtractedParameters{}, fmt.Errorf("decode model output: %w", err)
	}

	out := ports.ExtractedParameters{
		OriginText:             strings.TrimSpace(raw.Origin),
		DestinationText:        strings.TrimSpace(raw.Destination),
		TimeFlexibilityMinutes: defaultFlexibilityMinutes,
		Constraints: domain.Constraints{
			TransportMode: domain.ModeWalking,
			AvoidTolls:    raw.Constraints.AvoidTolls,
			AvoidFerries:  raw.Constraints.AvoidFerries,
			AvoidStairs:   raw.Constraints.AvoidStairs,
			AvoidHighways: raw.Constraints.AvoidHighways,
			AvoidHills:    raw.Constraints.AvoidHills,
		},
	}
	if raw.Flexibility != nil && *raw.Flexibility >= 0 {
		out.TimeFlexibilityMinutes = int(*raw.Flexibility)
	}
	if mode, err := domain.ParseTravelMode(strings.ToLower(strings.TrimSpace(raw.Constraints.Mode))); err == nil {
		out.Constraints.TransportMode = mode
	}
	for _, q := range raw.Queries {
		s, ok := q.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out.TagQueries = append(out.TagQueries, strings.TrimSpace(s))
		if len(out.TagQueries) == maxTagQueries {
			break
		}
	}
	return out, nil
}
