package llm

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/form-extractor/internal/schema"
)

const systemPreamble = "You are a form digitization assistant. You receive text detected on an image of a handwritten or printed form, " +
	"as JSON with the detected fragments in reading order and their confidence. Organize it into the JSON document described by the schema below."

var systemRules = []string{
	"Return ONLY one JSON object. No prose, no markdown.",
	"Group related fields into sections. Put anything that does not belong to a clear group in a section named \"General Information\".",
	"Every field_value is a string. Copy values as written; do not invent values that are not in the text.",
	"Set a field's confidence to high, medium or low according to how legible it was.",
	"List field names you could not read reliably in unclear_fields.",
	"Use tables for repeated rows such as line items.",
	"Fill key_entities only with values that appear in the text.",
	"Set signatures_detected to true only if the text indicates a signature.",
	"confidence_score is your overall confidence between 0 and 1.",
}

// BuildPrompt embeds the serialized detection result in the user message.
func BuildPrompt(detectionJSON []byte, filename string) Prompt {
	var sys strings.Builder
	sys.WriteString(systemPreamble)
	sys.WriteString("\n\nRules:\n")
	for _, r := range systemRules {
		sys.WriteString("- ")
		sys.WriteString(r)
		sys.WriteByte('\n')
	}
	sys.WriteString("\nJSON Schema:\n")
	sys.WriteString(mustJSON(schema.BuildDocumentJSONSchema()))

	var user strings.Builder
	if filename != "" {
		user.WriteString("Filename: ")
		user.WriteString(filename)
		user.WriteString("\n\n")
	}
	user.WriteString("Detected text:\n")
	user.Write(detectionJSON)
	user.WriteString("\n\nReturn ONLY the JSON document.")

	return Prompt{System: sys.String(), User: user.String()}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
