package llm

import (
	"encoding/json"
	"strings"
)

// MaxPromptTextChars caps the document text sent to the model.
const MaxPromptTextChars = 24000

// BuildSystemPrompt returns the fixed system message for field extraction.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a precise information extraction assistant.",
		"Extract the requested fields and return ONLY valid JSON.",
		"No explanations, no prose, only JSON.",
		"Return exactly one object whose keys are the template keys.",
		`Each key maps to an object of the form {"value": "<text exactly as it appears in the document>"}.`,
		`If a field is not present, use {"value": ""}.`,
		"Do not return line numbers, word indexes, coordinates or any other positional data.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the template and document text.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if name := strings.TrimSpace(req.FileName); name != "" {
		b.WriteString("Document: ")
		b.WriteString(name)
		b.WriteString("\n")
	}

	b.WriteString("Template keys: ")
	b.WriteString(strings.Join(req.Keys, ", "))
	b.WriteString("\n\nTemplate JSON:\n")
	b.WriteString(templateBlock(req))

	text := strings.TrimSpace(req.Text)
	b.WriteString("\n\nFull Text:\n")
	if r := []rune(text); len(r) > MaxPromptTextChars {
		b.WriteString(string(r[:MaxPromptTextChars]))
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}

// BuildExtractionRequest assembles the JSON-mode completion request.
func BuildExtractionRequest(req ExtractRequest) CompletionRequest {
	return CompletionRequest{
		System:   BuildSystemPrompt(),
		User:     BuildUserPrompt(req),
		JSONMode: true,
	}
}

// templateBlock renders specs in key order; map marshaling would sort keys.
func templateBlock(req ExtractRequest) string {
	var b strings.Builder
	b.WriteString("{\n")
	for i, k := range req.Keys {
		kb, _ := json.Marshal(k)
		spec := req.Specs[k]
		if spec == nil {
			spec = map[string]any{}
		}
		sb, err := json.Marshal(spec)
		if err != nil {
			sb = []byte("{}")
		}
		b.WriteString("  ")
		b.Write(kb)
		b.WriteString(": ")
		b.Write(sb)
		if i < len(req.Keys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}
