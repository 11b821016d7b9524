package reply

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/polzovatel/inbox-responder/internal/llm"
)

// DefaultPersona is the style preamble sent with every generation request.
const DefaultPersona = `You answer LinkedIn messages on behalf of the account owner while they are away.
Write in the language of the incoming message.
Keep the reply short, friendly and professional: two or three sentences, no lists, no markdown.
Never promise meetings, prices or dates. Never say you are an assistant or a bot.
Reply with the message text only.`

var (
	leadingMarkerRe = regexp.MustCompile(`(?i)^\s*(?:me|ai|assistant|bot|reply|response)\s*:\s*`)
	turnMarkerRe    = regexp.MustCompile(`(?im)^\s*(?:human|user|them|contact)\s*:`)
)

// GenerativeSelector delegates the reply to a completion provider. The
// completion is used as is apart from trimming; templates do not apply.
type GenerativeSelector struct {
	client    llm.Client
	persona   string
	signature string
}

func NewGenerativeSelector(client llm.Client, persona, signature string) *GenerativeSelector {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	return &GenerativeSelector{client: client, persona: persona, signature: signature}
}

func (s *GenerativeSelector) Backend() string { return "llm:" + s.client.Name() }

func (s *GenerativeSelector) Select(ctx context.Context, obs Observation) (string, bool, error) {
	resp, err := s.client.Generate(ctx, llm.Request{
		System:      s.persona,
		Messages:    []llm.Message{{Role: "user", Content: Prompt(obs)}},
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if err != nil {
		return "", false, fmt.Errorf("generate reply: %w", err)
	}
	text := CleanCompletion(resp.Text, obs.SenderName)
	if text == "" {
		return "", false, nil
	}
	return WithSignature(text, s.signature), true, nil
}

// Prompt renders the user turn sent to the provider.
func Prompt(obs Observation) string {
	kind := "follow-up message"
	if obs.FirstMessage {
		kind = "first message"
	}
	return fmt.Sprintf("%s sent a %s:\n%s\n\nMe:", strings.TrimSpace(obs.SenderName), kind, strings.TrimSpace(obs.MessageText))
}

// CleanCompletion trims whitespace, drops a leading speaker marker and cuts
// the text at the first echoed turn of the other participant.
func CleanCompletion(text, senderName string) string {
	text = leadingMarkerRe.ReplaceAllString(strings.TrimSpace(text), "")
	if loc := turnMarkerRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	if name := strings.TrimSpace(senderName); name != "" {
		nameRe := regexp.MustCompile(`(?im)^\s*` + regexp.QuoteMeta(name) + `\s*:`)
		if loc := nameRe.FindStringIndex(text); loc != nil {
			text = text[:loc[0]]
		}
	}
	return strings.TrimSpace(text)
}
