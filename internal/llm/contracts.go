package llm

import "context"

// CompletionRequest is one chat-completion call.
type CompletionRequest struct {
	System   string
	User     string
	JSONMode bool
}

// Completer is the LLM provider contract: send a prompt, get raw text back.
// The returned text may be malformed JSON; callers parse it leniently.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// ExtractRequest carries what the prompt builder needs for one document.
type ExtractRequest struct {
	Text     string
	Keys     []string       // template keys in template order
	Specs    map[string]any // key -> template field spec
	FileName string
}

// FieldValue is one sanitized field; a nil Value means the model did not return it.
type FieldValue struct {
	Value *string `json:"value"`
}

// String returns the value or "" when absent.
func (f FieldValue) String() string {
	if f.Value == nil {
		return ""
	}
	return *f.Value
}
