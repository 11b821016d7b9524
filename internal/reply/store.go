package reply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// Store yields the ordered rule list.
type Store interface {
	Rules(ctx context.Context) ([]Rule, error)
}

// StaticStore serves a fixed rule list.
type StaticStore []Rule

func (s StaticStore) Rules(ctx context.Context) ([]Rule, error) {
	return s, ctx.Err()
}

// FileStore reads and validates the rule file on every call so edits take
// effect without a restart.
type FileStore struct {
	Path string
}

func (s FileStore) Rules(ctx context.Context) ([]Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data, FormatFor(s.Path))
}

// Format is the encoding of a rule file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the format from the file extension; anything other than
// .yaml/.yml is parsed as JSON5, which also covers plain JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// record is one rule as written in a file. Besides the matchers/scope/template
// shape it accepts the older matchs/isFirstMessage/response keys.
type record struct {
	Matchers []string `json:"matchers" yaml:"matchers"`
	Scope    string   `json:"scope" yaml:"scope"`
	Template string   `json:"template" yaml:"template"`

	Matchs         []string `json:"matchs" yaml:"matchs"`
	IsFirstMessage *bool    `json:"isFirstMessage" yaml:"isFirstMessage"`
	Response       string   `json:"response" yaml:"response"`
}

// ParseRules decodes and validates a rule list. Any invalid record rejects
// the whole list.
func ParseRules(data []byte, format Format) ([]Rule, error) {
	var records []record
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &records)
	default:
		err = json5.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	rules := make([]Rule, 0, len(records))
	for i, rec := range records {
		r, err := rec.rule()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (rec record) rule() (Rule, error) {
	if len(rec.Matchers) > 0 && len(rec.Matchs) > 0 {
		return Rule{}, fmt.Errorf("%w: both matchers and matchs set", ErrInvalidRule)
	}
	if rec.Template != "" && rec.Response != "" {
		return Rule{}, fmt.Errorf("%w: both template and response set", ErrInvalidRule)
	}
	if rec.Scope != "" && rec.IsFirstMessage != nil {
		return Rule{}, fmt.Errorf("%w: both scope and isFirstMessage set", ErrInvalidRule)
	}

	matchers := rec.Matchers
	if len(matchers) == 0 {
		matchers = rec.Matchs
	}
	template := rec.Template
	if template == "" {
		template = rec.Response
	}
	scope, err := ParseScope(rec.Scope)
	if err != nil {
		return Rule{}, err
	}
	// Legacy files only restrict keyword rules to first contacts; a false
	// isFirstMessage narrows scope-only rules to follow-ups.
	if rec.IsFirstMessage != nil {
		switch {
		case *rec.IsFirstMessage:
			scope = ScopeFirst
		case len(matchers) == 0:
			scope = ScopeFollowup
		default:
			scope = ScopeAny
		}
	}
	return NewRule(matchers, scope, template)
}
