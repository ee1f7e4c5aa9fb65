package match

import (
	"strings"

	"github.com/kailas-cloud/memoir/internal/domain"
	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
)

// noneAnswer is what the model is told to say when nothing fits.
const noneAnswer = "NONE"

const systemPrompt = "You pick one photo from a personal photo library.\n" +
	"Each library line is a photo id, a colon, then the photo's tags.\n" +
	"Answer with exactly one photo id copied from the library and nothing else.\n" +
	"If no photo fits the description, answer " + noneAnswer + "."

// buildPrompt embeds every record id with its non-path tags and the user's description.
func buildPrompt(records []domphoto.Record, query string) []domain.Message {
	var sb strings.Builder
	sb.WriteString("Library:\n")
	for _, r := range records {
		sb.WriteString("- ")
		sb.WriteString(r.ID())
		sb.WriteString(": ")
		if tags := r.DescriptiveTags(); len(tags) > 0 {
			sb.WriteString(strings.Join(tags, ", "))
		} else {
			sb.WriteString("(no tags)")
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\nDescription: ")
	sb.WriteString(query)

	return []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: sb.String()},
	}
}

// normalizeAnswer trims whitespace and wrapping quotes or backticks from a model answer.
func normalizeAnswer(answer string) string {
	a := strings.TrimSpace(answer)
	for {
		trimmed := strings.TrimSpace(strings.Trim(a, "\"'`"))
		if trimmed == a {
			return a
		}
		a = trimmed
	}
}
