package filing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// rulesSchema guards the hand-edited rules file: a malformed rule silently
// matching everything is exactly the failure mode the operation governor
// exists to catch, so it gets rejected at load time instead.
const rulesSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["rules"],
	"properties": {
		"rules": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["keywords", "folder"],
				"properties": {
					"keywords": {
						"type": "array",
						"minItems": 1,
						"items": {"type": "string", "minLength": 1}
					},
					"folder": {"type": "string", "minLength": 1},
					"weight": {"type": "integer", "minimum": 1}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

type Rule struct {
	Keywords []string `json:"keywords"`
	Folder   string   `json:"folder"`
	Weight   int      `json:"weight,omitempty"`
}

type rulesFile struct {
	Rules []Rule `json:"rules"`
}

// RuleSet matches incoming filenames against keyword rules to rank candidate
// destination folders.
type RuleSet struct {
	rules []Rule
}

// LoadRules reads and schema-validates a rules JSON file.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (*RuleSet, error) {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(rulesSchema))
	if err != nil {
		return nil, fmt.Errorf("parse rules schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fileuzi-rules.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("register rules schema: %w", err)
	}
	schema, err := compiler.Compile("fileuzi-rules.json")
	if err != nil {
		return nil, fmt.Errorf("compile rules schema: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("invalid rules file: %w", err)
	}

	var parsed rulesFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode rules file: %w", err)
	}
	rules := make([]Rule, 0, len(parsed.Rules))
	for _, rule := range parsed.Rules {
		if rule.Weight <= 0 {
			rule.Weight = 1
		}
		rules = append(rules, rule)
	}
	return &RuleSet{rules: rules}, nil
}

type Candidate struct {
	Folder string
	Score  int
}

// Match ranks destination folders by total weight of case-insensitive
// keyword hits in name. Ties keep rule-file order.
func (rs *RuleSet) Match(name string) []Candidate {
	if rs == nil {
		return nil
	}
	upper := strings.ToUpper(name)
	var candidates []Candidate
	for _, rule := range rs.rules {
		score := 0
		for _, keyword := range rule.Keywords {
			if keyword == "" {
				continue
			}
			if strings.Contains(upper, strings.ToUpper(keyword)) {
				score += rule.Weight
			}
		}
		if score > 0 {
			candidates = append(candidates, Candidate{Folder: rule.Folder, Score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}
