package alerting

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

// BuildDeadLetterMessage reports an outbox event that exhausted its retry
// budget (spec.md §4.1: dead-letter after MaxRetries) and needs a human to
// inspect or replay it.
func BuildDeadLetterMessage(eventID, eventType, lastError, dashboardURL string) []goslack.Block {
	text := fmt.Sprintf(":x: *Outbox event dead-lettered*\n*Type:* %s\n*Event ID:* `%s`\n*Last error:*\n%s",
		eventType, eventID, truncate(lastError))

	blocks := []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}
	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Outbox", false, false))
		btn.URL = fmt.Sprintf("%s/outbox/%s", dashboardURL, eventID)
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}
	return blocks
}

// BuildBreakerTripMessage reports a resilience.Breaker transitioning to open
// (spec.md §4.11) — the provider it guards is currently being short-circuited.
func BuildBreakerTripMessage(breakerName, state, dashboardURL string) []goslack.Block {
	emoji := ":warning:"
	if state == "open" {
		emoji = ":rotating_light:"
	}
	text := fmt.Sprintf("%s *Circuit breaker %q is now %s*", emoji, breakerName, state)

	blocks := []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}
	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Health", false, false))
		btn.URL = fmt.Sprintf("%s/healthz", dashboardURL)
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}
	return blocks
}

func truncate(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated — see dashboard for full error)_"
}
