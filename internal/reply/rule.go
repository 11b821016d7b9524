package reply

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidRule is returned for rule records that cannot be used.
var ErrInvalidRule = errors.New("invalid rule")

// Observation is a snapshot of the latest incoming message in the active thread.
type Observation struct {
	SenderName   string
	MessageText  string
	FirstMessage bool
	ObservedAt   time.Time
}

// Scope restricts a rule to first contacts, follow-ups, or both.
type Scope int

const (
	ScopeAny Scope = iota
	ScopeFirst
	ScopeFollowup
)

func (s Scope) String() string {
	switch s {
	case ScopeFirst:
		return "first"
	case ScopeFollowup:
		return "followup"
	default:
		return "any"
	}
}

// ParseScope accepts "any", "first"/"firstOnly" and "followup"/"followupOnly".
// An empty string means ScopeAny.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return ScopeAny, nil
	case "first", "firstonly":
		return ScopeFirst, nil
	case "followup", "followuponly":
		return ScopeFollowup, nil
	default:
		return ScopeAny, fmt.Errorf("%w: unknown scope %q", ErrInvalidRule, s)
	}
}

// Admits reports whether a message with the given first-contact flag is in scope.
func (s Scope) Admits(first bool) bool {
	switch s {
	case ScopeFirst:
		return first
	case ScopeFollowup:
		return !first
	default:
		return true
	}
}

// nonWord matches a character that cannot be part of a word in any script.
const nonWord = `[^\p{L}\p{N}_]`

// Rule maps keywords and a scope to a reply template. Build with NewRule.
type Rule struct {
	Matchers []string
	Scope    Scope
	Template string

	pattern *regexp.Regexp
}

// NewRule validates the template and compiles the matchers into a
// case-insensitive whole-word pattern. Nil or empty matchers make the rule
// a scope-only fallback.
func NewRule(matchers []string, scope Scope, template string) (Rule, error) {
	if strings.TrimSpace(template) == "" {
		return Rule{}, fmt.Errorf("%w: empty template", ErrInvalidRule)
	}
	if err := checkTemplate(template); err != nil {
		return Rule{}, err
	}
	r := Rule{Scope: scope, Template: template}
	if len(matchers) == 0 {
		return r, nil
	}
	alts := make([]string, 0, len(matchers))
	for _, m := range matchers {
		m = strings.TrimSpace(m)
		if m == "" {
			return Rule{}, fmt.Errorf("%w: blank matcher", ErrInvalidRule)
		}
		alts = append(alts, regexp.QuoteMeta(m))
		r.Matchers = append(r.Matchers, m)
	}
	pattern, err := regexp.Compile(`(?i)(?:^|` + nonWord + `)(?:` + strings.Join(alts, "|") + `)(?:$|` + nonWord + `)`)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	r.pattern = pattern
	return r, nil
}

// Fires reports whether the rule is satisfied by the observation.
func (r Rule) Fires(obs Observation) bool {
	if r.pattern != nil && !r.pattern.MatchString(obs.MessageText) {
		return false
	}
	return r.Scope.Admits(obs.FirstMessage)
}

// Match returns the first rule in list order that fires.
func Match(rules []Rule, obs Observation) (Rule, bool) {
	for _, r := range rules {
		if r.Fires(obs) {
			return r, true
		}
	}
	return Rule{}, false
}
