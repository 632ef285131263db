package multiagent

import "testing"

func testPatternTable() map[string][]WeightedPattern {
	return map[string][]WeightedPattern{
		"reviewer": {
			{Pattern: `(?i)review`, Weight: 0.85},
			{Pattern: `(?i)\blint\b`, Weight: 0.72},
		},
		"executor": {
			{Pattern: `(?i)\brun\b`, Weight: 0.80},
			{Pattern: `(?i)\bexecute\b`, Weight: 0.78},
		},
	}
}

func TestIntentRouter_Determinism(t *testing.T) {
	r := NewIntentRouter(testPatternTable())
	input := "please review authentication in src/auth.py"

	first := r.Route(input)
	second := r.Route(input)
	if first != second {
		t.Errorf("Route not deterministic: %+v vs %+v", first, second)
	}
	if first.AgentName != "reviewer" {
		t.Errorf("AgentName = %q, want reviewer", first.AgentName)
	}
	if first.Confidence < MinRouteConfidence {
		t.Errorf("Confidence = %v, want >= %v", first.Confidence, MinRouteConfidence)
	}
}

func TestIntentRouter_BelowThresholdYieldsNoRoute(t *testing.T) {
	r := NewIntentRouter(testPatternTable())
	decision := r.Route("please lint this module")
	if decision.AgentName != "" {
		t.Errorf("expected no route for sub-threshold score, got %+v", decision)
	}
}

func TestIntentRouter_ShortInputNoRoute(t *testing.T) {
	r := NewIntentRouter(testPatternTable())
	decision := r.Route("run")
	if decision.AgentName != "" {
		t.Errorf("expected no route for short input, got %+v", decision)
	}
}

func TestIntentRouter_NegativePatternNoRoute(t *testing.T) {
	r := NewIntentRouter(testPatternTable())
	decision := r.Route("thanks!")
	if decision.AgentName != "" {
		t.Errorf("expected no route for acknowledgment, got %+v", decision)
	}
}

func TestIntentRouter_SuggestionsIncludeConfidentMatch(t *testing.T) {
	r := NewIntentRouter(testPatternTable())
	suggestions := r.Suggestions("please lint this module")

	found := false
	for _, s := range suggestions {
		if s.AgentName == "reviewer" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected reviewer in suggestions, got %+v", suggestions)
	}
	if len(suggestions) > 3 {
		t.Errorf("expected at most 3 suggestions, got %d", len(suggestions))
	}
}

func TestIntentRouter_SetThresholds(t *testing.T) {
	r := NewIntentRouter(testPatternTable())
	r.SetThresholds(0.90, 0.50)

	decision := r.Route("please review this code")
	if decision.AgentName != "" {
		t.Errorf("expected no route once threshold raised above weight, got %+v", decision)
	}
}

func TestIntentRouter_RouteProperty(t *testing.T) {
	// Testable property 1: if route(s) = (a, c) with c >= 0.70, then a is
	// in suggestions(s).
	r := NewIntentRouter(testPatternTable())
	input := "please review authentication in src/auth.py"

	decision := r.Route(input)
	if decision.AgentName == "" {
		t.Fatal("expected a route decision")
	}

	suggestions := r.Suggestions(input)
	found := false
	for _, s := range suggestions {
		if s.AgentName == decision.AgentName {
			found = true
		}
	}
	if !found {
		t.Errorf("routed agent %q not present in suggestions %+v", decision.AgentName, suggestions)
	}
}
