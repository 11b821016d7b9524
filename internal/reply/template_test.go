package reply

import "testing"

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		sender   string
		want     string
	}{
		{"all placeholders", "Hi {firstname}, bye {lastname} ({name})", "Jane Doe", "Hi Jane, bye Doe (Jane Doe)"},
		{"single token name", "Hi {firstname} {lastname}!", "Cher", "Hi Cher !"},
		{"three tokens", "{firstname}/{lastname}", "Jean Pierre Dupont", "Jean/Pierre"},
		{"repeated", "{firstname} {firstname}", "Jane Doe", "Jane Jane"},
		{"surrounding space", "[{name}]", "  Jane   Doe ", "[Jane   Doe]"},
		{"empty name", "Hi {name}.", "", "Hi ."},
		{"no placeholders", "Thanks!", "Jane Doe", "Thanks!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, tt.sender); got != tt.want {
				t.Fatalf("Render(%q, %q) = %q, want %q", tt.template, tt.sender, got, tt.want)
			}
		})
	}
}

func TestWithSignature(t *testing.T) {
	if got := WithSignature("Hello", ""); got != "Hello" {
		t.Fatalf("empty signature changed text: %q", got)
	}
	if got := WithSignature("Hello", "— Bot"); got != "Hello\n\n— Bot" {
		t.Fatalf("WithSignature = %q", got)
	}
}
