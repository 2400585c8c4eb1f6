package classifier

import "strings"

// Family identifies which parser convention matched a model response.
type Family string

const (
	// FamilyThinkTags covers models that wrap reasoning in paired
	// <think></think> markers ahead of the answer text.
	FamilyThinkTags Family = "think_tags"

	// FamilyPlain covers models with no separable reasoning text.
	FamilyPlain Family = "plain"
)

const (
	thinkStartMarker = "<think>"
	thinkEndMarker   = "</think>"
)

// Result is the structured form of one raw model response.
type Result struct {
	Thinking    string `json:"thinking,omitempty"`
	FinalAnswer string `json:"finalAnswer"`
	Family      Family `json:"family"`
	HasThinking bool   `json:"hasThinking"`
}

// thinkTagModels lists model identifier prefixes whose output uses the
// think-tag convention.
var thinkTagModels = []string{
	"deepseek-r1",
	"deepseek-reasoner",
	"qwq",
	"qwen3",
}

// FamilyForModel resolves a backend model identifier to its parser
// convention. Unknown models are treated as plain.
func FamilyForModel(model string) Family {
	normalized := strings.ToLower(strings.TrimSpace(model))
	for _, prefix := range thinkTagModels {
		if strings.HasPrefix(normalized, prefix) {
			return FamilyThinkTags
		}
	}
	return FamilyPlain
}

// Classify splits a raw response into reasoning and final answer text
// using the convention of the given model. It is pure and performs no
// I/O.
func Classify(raw, model string) Result {
	family := FamilyForModel(model)
	if family != FamilyThinkTags {
		return Result{FinalAnswer: raw, Family: FamilyPlain}
	}
	return parseThinkTags(raw)
}

// parseThinkTags extracts the first start/end marker pair. A start
// marker without its end marker means the response was cut off mid
// reasoning, so the whole input counts as final answer only.
func parseThinkTags(raw string) Result {
	start := strings.Index(raw, thinkStartMarker)
	if start < 0 {
		return Result{FinalAnswer: raw, Family: FamilyThinkTags}
	}

	rest := raw[start+len(thinkStartMarker):]
	end := strings.Index(rest, thinkEndMarker)
	if end < 0 {
		return Result{FinalAnswer: raw, Family: FamilyThinkTags}
	}

	thinking := strings.TrimSpace(rest[:end])
	answer := raw[:start] + rest[end+len(thinkEndMarker):]
	return Result{
		Thinking:    thinking,
		FinalAnswer: strings.TrimSpace(answer),
		Family:      FamilyThinkTags,
		HasThinking: thinking != "",
	}
}
