// Package classify assigns error categories to log messages using an ordered
// rule table. The table is data, not code: rules are matched in declaration
// order and the first match wins, so ordering is the disambiguation mechanism
// for messages that contain keywords of more than one category.
package classify

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	triageerrors "logtriage/internal/errors"
)

// ErrorType is a closed, extensible classification tag for a log message.
type ErrorType string

// Built-in error types.
const (
	FileNotFound     ErrorType = "FILE_NOT_FOUND"
	CalculationError ErrorType = "CALCULATION_ERROR"
	Timeout          ErrorType = "TIMEOUT"
	MemoryError      ErrorType = "MEMORY_ERROR"
	NetworkError     ErrorType = "NETWORK_ERROR"
	PermissionError  ErrorType = "PERMISSION_ERROR"
	ValidationError  ErrorType = "VALIDATION_ERROR"
	Exception        ErrorType = "EXCEPTION"
	Unknown          ErrorType = "UNKNOWN"
)

// Rule maps a set of keywords to an ErrorType. A rule matches when any of its
// keywords occurs in the message, case-insensitively.
type Rule struct {
	Type     ErrorType `yaml:"type"`
	Keywords []string  `yaml:"keywords"`
}

// DefaultRules returns the built-in rule table. Order matters: a message
// containing both "file" and "timeout" tokens is classified by whichever rule
// appears first.
func DefaultRules() []Rule {
	return []Rule{
		{Type: FileNotFound, Keywords: []string{"not found", "no such file"}},
		{Type: CalculationError, Keywords: []string{"division by zero", "divide by zero", "overflow", "calculation"}},
		{Type: Timeout, Keywords: []string{"timeout", "timed out"}},
		{Type: MemoryError, Keywords: []string{"memory", "oom"}},
		{Type: NetworkError, Keywords: []string{"connection", "network", "unreachable"}},
		{Type: PermissionError, Keywords: []string{"permission", "denied", "forbidden"}},
		{Type: ValidationError, Keywords: []string{"invalid", "validation"}},
		{Type: Exception, Keywords: []string{"exception", "traceback", "error"}},
	}
}

// Classifier matches messages against an ordered rule table.
type Classifier struct {
	rules []Rule
}

// New creates a classifier with the given rules. A nil or empty slice gets
// the default table.
func New(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	lowered := make([]Rule, len(rules))
	for i, r := range rules {
		keywords := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			keywords[j] = strings.ToLower(kw)
		}
		lowered[i] = Rule{Type: r.Type, Keywords: keywords}
	}
	return &Classifier{rules: lowered}
}

// Append adds a rule after the existing ones. Appended rules lose ties with
// earlier rules, which keeps the default disambiguation stable.
func (c *Classifier) Append(r Rule) {
	keywords := make([]string, len(r.Keywords))
	for j, kw := range r.Keywords {
		keywords[j] = strings.ToLower(kw)
	}
	c.rules = append(c.rules, Rule{Type: r.Type, Keywords: keywords})
}

// Rules returns the active rule table in match order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the ErrorType of the first matching rule, or Unknown when
// no rule matches. Matching is case-insensitive substring containment.
func (c *Classifier) Classify(message string) ErrorType {
	lower := strings.ToLower(message)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Type
			}
		}
	}
	return Unknown
}

// ruleFile is the YAML root structure for an external rule table.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule table from a YAML file:
//
//	rules:
//	  - type: DISK_FULL
//	    keywords: ["no space left", "disk full"]
//
// Rules from the file replace the default table entirely, so the file
// controls ordering end to end.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, triageerrors.NewConfigValidationError("rules", path, "cannot read rule file").WithContext("cause", err.Error())
	}
	var cfg ruleFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, triageerrors.NewConfigValidationError("rules", path, "rule file is not valid YAML").WithContext("cause", err.Error())
	}
	for i, r := range cfg.Rules {
		if r.Type == "" {
			return nil, triageerrors.NewConfigValidationError("rules", path, "rule without a type").WithContext("index", i)
		}
		if len(r.Keywords) == 0 {
			return nil, triageerrors.NewConfigValidationError("rules", path, "rule without keywords").WithContext("type", string(r.Type))
		}
	}
	return cfg.Rules, nil
}
