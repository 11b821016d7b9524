package reply

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_]+)\}`)

var knownPlaceholders = map[string]bool{
	"name":      true,
	"firstname": true,
	"lastname":  true,
}

func checkTemplate(template string) error {
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if !knownPlaceholders[m[1]] {
			return fmt.Errorf("%w: unknown placeholder {%s}", ErrInvalidRule, m[1])
		}
	}
	return nil
}

// Render substitutes {name}, {firstname} and {lastname}. First and last name
// are the first and second whitespace-delimited tokens of the sender name;
// a missing token renders as an empty string.
func Render(template, senderName string) string {
	name := strings.TrimSpace(senderName)
	var first, last string
	fields := strings.Fields(name)
	if len(fields) > 0 {
		first = fields[0]
	}
	if len(fields) > 1 {
		last = fields[1]
	}
	return strings.NewReplacer(
		"{name}", name,
		"{firstname}", first,
		"{lastname}", last,
	).Replace(template)
}

// WithSignature appends the signature after a blank line. An empty signature
// leaves text untouched.
func WithSignature(text, signature string) string {
	if signature == "" {
		return text
	}
	return text + "\n\n" + signature
}
