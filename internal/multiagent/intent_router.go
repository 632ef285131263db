package multiagent

import (
	"regexp"
	"sort"
	"strings"
)

// RouteDecision is the outcome of scoring an input against every agent's
// weighted pattern set. Confidence is in [0, 1]; a zero-value RouteDecision
// (empty AgentName) means no agent should be selected.
type RouteDecision struct {
	AgentName  string
	Confidence float64
}

// WeightedPattern is one entry in an agent's pattern table: a regex and the
// confidence score it contributes when it matches. Pattern tables are data,
// not code, so new agents or language variants can be added without
// changing IntentRouter.
type WeightedPattern struct {
	Pattern string
	Weight  float64
}

// MinRouteConfidence is the minimum score for Route to return a decision.
const MinRouteConfidence = 0.70

// AmbiguityThreshold is the minimum score for an agent to appear in
// Suggestions.
const AmbiguityThreshold = 0.60

// negativePatterns are inputs that never route anywhere: greetings, thanks,
// and acknowledgments in the languages the pattern tables support.
var negativePatterns = []string{
	`(?i)^\s*(hi|hello|hey|thanks|thank you|ok|okay|sure)[.!]*\s*$`,
	`(?i)^\s*(oi|olá|obrigado|obrigada|valeu)[.!]*\s*$`,
}

// IntentRouter scores free-text input against per-agent weighted regex
// pattern sets and picks the best-matching agent.
type IntentRouter struct {
	minConfidence      float64
	ambiguityThreshold float64
	negative           []*regexp.Regexp
	patterns           map[string][]compiledPattern
	order              []string
}

type compiledPattern struct {
	re     *regexp.Regexp
	weight float64
}

// NewIntentRouter builds a router from a pattern table: agent name → its
// weighted patterns. Patterns are compiled once at construction.
func NewIntentRouter(table map[string][]WeightedPattern) *IntentRouter {
	r := &IntentRouter{
		minConfidence:      MinRouteConfidence,
		ambiguityThreshold: AmbiguityThreshold,
		patterns:           make(map[string][]compiledPattern, len(table)),
	}
	for _, p := range negativePatterns {
		r.negative = append(r.negative, regexp.MustCompile(p))
	}

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		compiled := make([]compiledPattern, 0, len(table[name]))
		for _, wp := range table[name] {
			re, err := regexp.Compile(wp.Pattern)
			if err != nil {
				continue
			}
			compiled = append(compiled, compiledPattern{re: re, weight: wp.Weight})
		}
		r.patterns[name] = compiled
		r.order = append(r.order, name)
	}
	return r
}

// SetThresholds overrides the default min-confidence and ambiguity
// thresholds (e.g. from router.min_confidence / router.ambiguity_threshold
// configuration).
func (r *IntentRouter) SetThresholds(minConfidence, ambiguityThreshold float64) {
	if minConfidence > 0 {
		r.minConfidence = minConfidence
	}
	if ambiguityThreshold > 0 {
		r.ambiguityThreshold = ambiguityThreshold
	}
}

// Route scores input against every agent's pattern set and returns the
// best match, or a zero-value RouteDecision if none clears minConfidence.
// Route is deterministic: identical input always yields identical output.
func (r *IntentRouter) Route(input string) RouteDecision {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) < 5 {
		return RouteDecision{}
	}
	for _, neg := range r.negative {
		if neg.MatchString(trimmed) {
			return RouteDecision{}
		}
	}

	scores := r.score(trimmed)
	if len(scores) == 0 {
		return RouteDecision{}
	}

	best := scores[0]
	if best.Confidence >= r.minConfidence {
		return best
	}
	return RouteDecision{}
}

// Suggestions returns up to the top 3 agents scoring at least
// ambiguityThreshold, for disambiguation when Route finds no confident
// match.
func (r *IntentRouter) Suggestions(input string) []RouteDecision {
	trimmed := strings.TrimSpace(input)
	scores := r.score(trimmed)

	var suggestions []RouteDecision
	for _, s := range scores {
		if s.Confidence >= r.ambiguityThreshold {
			suggestions = append(suggestions, s)
		}
		if len(suggestions) == 3 {
			break
		}
	}
	return suggestions
}

// score returns every agent's confidence, highest first, ties broken by
// pattern-table insertion order for determinism.
func (r *IntentRouter) score(input string) []RouteDecision {
	var scores []RouteDecision
	for _, name := range r.order {
		best := 0.0
		for _, cp := range r.patterns[name] {
			if cp.weight > best && cp.re.MatchString(input) {
				best = cp.weight
			}
		}
		if best > 0 {
			scores = append(scores, RouteDecision{AgentName: name, Confidence: best})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})
	return scores
}
