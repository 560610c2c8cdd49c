package filing

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleRules = `{
	"rules": [
		{"keywords": ["invoice", "payment"], "folder": "Accounts", "weight": 2},
		{"keywords": ["drawing", "plan", "elevation"], "folder": "Current Drawings"},
		{"keywords": ["planning"], "folder": "Planning", "weight": 3}
	]
}`

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(sampleRules), 0o644); err != nil {
		t.Fatalf("seed rules failed: %v", err)
	}
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load rules failed: %v", err)
	}
	if rules.Len() != 3 {
		t.Fatalf("expected 3 rules, got %d", rules.Len())
	}
}

func TestRulesMatchRanksByWeight(t *testing.T) {
	rules, err := ParseRules([]byte(sampleRules))
	if err != nil {
		t.Fatalf("parse rules failed: %v", err)
	}
	candidates := rules.Match("2506_22_PLANNING DRAWING_C02.pdf")
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", candidates)
	}
	if candidates[0].Folder != "Planning" || candidates[0].Score != 3 {
		t.Fatalf("expected Planning first with score 3, got %+v", candidates[0])
	}
	if candidates[1].Folder != "Current Drawings" {
		t.Fatalf("expected Current Drawings second, got %+v", candidates[1])
	}
}

func TestRulesMatchIsCaseInsensitive(t *testing.T) {
	rules, err := ParseRules([]byte(sampleRules))
	if err != nil {
		t.Fatalf("parse rules failed: %v", err)
	}
	if got := rules.Match("INVOICE 42.pdf"); len(got) != 1 || got[0].Folder != "Accounts" {
		t.Fatalf("expected Accounts match, got %+v", got)
	}
	if got := rules.Match("unrelated.txt"); len(got) != 0 {
		t.Fatalf("expected no match, got %+v", got)
	}
}

func TestParseRulesRejectsInvalidShape(t *testing.T) {
	cases := []string{
		`{}`,                                            // missing rules
		`{"rules": [{"folder": "X"}]}`,                  // missing keywords
		`{"rules": [{"keywords": [], "folder": "X"}]}`,  // empty keywords
		`{"rules": [{"keywords": ["a"], "folder": ""}]}`,
		`{"rules": [{"keywords": ["a"], "folder": "X", "weight": 0}]}`,
		`{"rules": [{"keywords": ["a"], "folder": "X", "extra": true}]}`,
		`not json at all`,
	}
	for _, raw := range cases {
		if _, err := ParseRules([]byte(raw)); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
