package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/polzovatel/inbox-responder/internal/reply"
)

func runRulesCheck(t *testing.T, path string) (string, error) {
	t.Helper()
	cmd := rulesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"check", path})
	err := cmd.Execute()
	return out.String(), err
}

func TestRulesCheck_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.json")
	data := `[
		{"matchs": ["price"], "isFirstMessage": true, "response": "Hi {firstname}, see my rates."},
		{"template": "Thanks {name}, I will be back soon."},
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runRulesCheck(t, path)
	if err != nil {
		t.Fatalf("rules check: %v\n%s", err, out)
	}
	for _, want := range []string{"first", "price", "(any)", "2 rules OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRulesCheck_UnknownPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.yaml")
	data := "- matchers: [hello]\n  template: \"Hi {nickname}\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := runRulesCheck(t, path); !errors.Is(err, reply.ErrInvalidRule) {
		t.Fatalf("rules check = %v, want ErrInvalidRule", err)
	}
}

func TestOneLine(t *testing.T) {
	if got := oneLine("a\n\n  b", 10); got != "a b" {
		t.Fatalf("oneLine = %q", got)
	}
	if got := oneLine(strings.Repeat("x", 20), 10); got != "xxxxxxx..." {
		t.Fatalf("oneLine = %q", got)
	}
}
