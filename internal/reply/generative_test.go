package reply

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/polzovatel/inbox-responder/internal/llm"
)

type fakeClient struct {
	text string
	err  error
	last llm.Request
}

func (f *fakeClient) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.last = req
	return llm.Response{Text: f.text}, f.err
}

func (f *fakeClient) Name() string { return "fake" }

func TestGenerativeSelector_Select(t *testing.T) {
	client := &fakeClient{text: "  Me: Thanks Jane, I'll reply tomorrow.\nJane Doe: ok\n"}
	sel := NewGenerativeSelector(client, "", "")
	got, ok, err := sel.Select(context.Background(), Observation{
		SenderName:  "Jane Doe",
		MessageText: "Can we talk about {firstname}?",
	})
	if err != nil || !ok {
		t.Fatalf("Select = %q, %v, %v", got, ok, err)
	}
	if got != "Thanks Jane, I'll reply tomorrow." {
		t.Fatalf("Select = %q", got)
	}
	if client.last.System != DefaultPersona {
		t.Fatalf("persona not sent")
	}
	prompt := client.last.Messages[0].Content
	if !strings.Contains(prompt, "Jane Doe") || !strings.Contains(prompt, "{firstname}") {
		t.Fatalf("prompt missing sender or text: %q", prompt)
	}
	if sel.Backend() != "llm:fake" {
		t.Fatalf("Backend = %q", sel.Backend())
	}
}

func TestGenerativeSelector_Signature(t *testing.T) {
	sel := NewGenerativeSelector(&fakeClient{text: "Sure."}, "Be brief.", "— Bot")
	got, ok, err := sel.Select(context.Background(), Observation{SenderName: "A B", MessageText: "hello there you"})
	if err != nil || !ok || got != "Sure.\n\n— Bot" {
		t.Fatalf("Select = %q, %v, %v", got, ok, err)
	}
}

func TestGenerativeSelector_EmptyCompletion(t *testing.T) {
	sel := NewGenerativeSelector(&fakeClient{text: "  \nHuman: hi"}, "", "")
	_, ok, err := sel.Select(context.Background(), Observation{SenderName: "A B", MessageText: "hello there you"})
	if err != nil || ok {
		t.Fatalf("expected no reply, got ok=%v err=%v", ok, err)
	}
}

func TestGenerativeSelector_ProviderError(t *testing.T) {
	boom := errors.New("boom")
	sel := NewGenerativeSelector(&fakeClient{err: boom}, "", "")
	_, ok, err := sel.Select(context.Background(), Observation{MessageText: "hello there you"})
	if !errors.Is(err, boom) || ok {
		t.Fatalf("Select error = %v, ok = %v", err, ok)
	}
}

func TestCleanCompletion(t *testing.T) {
	tests := []struct {
		in, sender, want string
	}{
		{"Hello!", "Jane", "Hello!"},
		{"Assistant: Hello!", "Jane", "Hello!"},
		{"Hello!\nUser: more", "Jane", "Hello!"},
		{"Hello!\n\nJane: and?", "Jane", "Hello!"},
		{"Line one\nLine two", "", "Line one\nLine two"},
	}
	for _, tt := range tests {
		if got := CleanCompletion(tt.in, tt.sender); got != tt.want {
			t.Errorf("CleanCompletion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
