package reply

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func mustRule(t *testing.T, matchers []string, scope Scope, template string) Rule {
	t.Helper()
	r, err := NewRule(matchers, scope, template)
	if err != nil {
		t.Fatalf("NewRule(%v, %v, %q): %v", matchers, scope, template, err)
	}
	return r
}

func TestRuleSelector_KeywordRuleBeatsFallback(t *testing.T) {
	store := StaticStore{
		mustRule(t, []string{"hello"}, ScopeAny, "Hi {firstname}"),
		mustRule(t, nil, ScopeFirst, "Welcome"),
	}
	sel := NewRuleSelector(store, "")
	got, ok, err := sel.Select(context.Background(), Observation{
		SenderName:   "Jane Doe",
		MessageText:  "Hello there",
		FirstMessage: true,
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !ok || got != "Hi Jane" {
		t.Fatalf("Select = %q, %v; want %q, true", got, ok, "Hi Jane")
	}
}

func TestRuleSelector_NoMatchIsSilent(t *testing.T) {
	store := StaticStore{
		mustRule(t, []string{"price"}, ScopeAny, "See website"),
		mustRule(t, nil, ScopeFirst, "Welcome"),
	}
	sel := NewRuleSelector(store, "-- Bot")
	got, ok, err := sel.Select(context.Background(), Observation{
		SenderName:  "Jane Doe",
		MessageText: "Are you still around?",
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ok || got != "" {
		t.Fatalf("Select = %q, %v; want no reply", got, ok)
	}
}

func TestRuleSelector_AppendsSignature(t *testing.T) {
	store := StaticStore{mustRule(t, nil, ScopeAny, "Thanks {name}")}
	sel := NewRuleSelector(store, "— Bot")
	got, ok, err := sel.Select(context.Background(), Observation{SenderName: "Jane Doe", MessageText: "anything at all"})
	if err != nil || !ok {
		t.Fatalf("Select = %q, %v, %v", got, ok, err)
	}
	if !strings.HasSuffix(got, "\n\n— Bot") {
		t.Fatalf("reply %q does not end with signature", got)
	}
	if got != "Thanks Jane Doe\n\n— Bot" {
		t.Fatalf("reply = %q", got)
	}
}

func TestRuleSelector_StoreError(t *testing.T) {
	sel := NewRuleSelector(FileStore{Path: t.TempDir() + "/missing.json"}, "")
	_, ok, err := sel.Select(context.Background(), Observation{MessageText: "hello world"})
	if err == nil || ok {
		t.Fatalf("expected error for missing rule file, got ok=%v err=%v", ok, err)
	}
}

func TestMatch_Scopes(t *testing.T) {
	rules := []Rule{
		mustRule(t, []string{"job", "offer"}, ScopeFirst, "first-job"),
		mustRule(t, []string{"job"}, ScopeFollowup, "followup-job"),
		mustRule(t, nil, ScopeFollowup, "followup-fallback"),
		mustRule(t, nil, ScopeFirst, "first-fallback"),
	}
	tests := []struct {
		name  string
		text  string
		first bool
		want  string
	}{
		{"keyword first contact", "I have a JOB for you", true, "first-job"},
		{"keyword follow-up", "about the job again", false, "followup-job"},
		{"second keyword", "great offer here", true, "first-job"},
		{"whole word only", "jobs everywhere", true, "first-fallback"},
		{"fallback follow-up", "how are you doing", false, "followup-fallback"},
		{"fallback first", "how are you doing", true, "first-fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := Match(rules, Observation{MessageText: tt.text, FirstMessage: tt.first})
			if !ok {
				t.Fatalf("no rule matched")
			}
			if r.Template != tt.want {
				t.Fatalf("matched %q, want %q", r.Template, tt.want)
			}
		})
	}
}

func TestMatch_KeywordRuleDoesNotActAsFallback(t *testing.T) {
	rules := []Rule{mustRule(t, []string{"hello"}, ScopeFirst, "keyword")}
	if _, ok := Match(rules, Observation{MessageText: "good morning", FirstMessage: true}); ok {
		t.Fatalf("keyword rule fired without a keyword match")
	}
}

func TestMatch_MatchersAreLiteral(t *testing.T) {
	rules := []Rule{mustRule(t, []string{"a.b"}, ScopeAny, "dot")}
	if _, ok := Match(rules, Observation{MessageText: "see axb"}); ok {
		t.Fatalf("matcher was treated as a regular expression")
	}
	if _, ok := Match(rules, Observation{MessageText: "see a.b now"}); !ok {
		t.Fatalf("literal matcher did not match")
	}
}

func TestNewRule_Validation(t *testing.T) {
	tests := []struct {
		name     string
		matchers []string
		template string
	}{
		{"unknown placeholder", nil, "Hi {nickname}"},
		{"empty template", nil, "   "},
		{"blank matcher", []string{"ok", " "}, "Hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRule(tt.matchers, ScopeAny, tt.template)
			if !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("NewRule error = %v, want ErrInvalidRule", err)
			}
		})
	}
}

func TestParseScope(t *testing.T) {
	for in, want := range map[string]Scope{
		"":             ScopeAny,
		"any":          ScopeAny,
		"firstOnly":    ScopeFirst,
		"first":        ScopeFirst,
		"followupOnly": ScopeFollowup,
		"FOLLOWUP":     ScopeFollowup,
	} {
		got, err := ParseScope(in)
		if err != nil || got != want {
			t.Errorf("ParseScope(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseScope("sometimes"); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("ParseScope(sometimes) error = %v", err)
	}
}

func TestMatch_NonASCIIMatchers(t *testing.T) {
	rules := []Rule{
		mustRule(t, []string{"привет"}, ScopeAny, "Здравствуйте"),
		mustRule(t, []string{"ça"}, ScopeAny, "Oui"),
	}
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"Привет, как дела?", "Здравствуйте", true},
		{"приветствую", "", false},
		{"Comment ça va ?", "Oui", true},
		{"ça", "Oui", true},
		{"un forçat", "", false},
	}
	for _, tt := range tests {
		r, ok := Match(rules, Observation{MessageText: tt.text})
		if ok != tt.ok || r.Template != tt.want {
			t.Errorf("Match(%q) = %q, %v; want %q, %v", tt.text, r.Template, ok, tt.want, tt.ok)
		}
	}
}
