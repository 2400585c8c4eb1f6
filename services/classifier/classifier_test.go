package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ThinkTagModel(t *testing.T) {
	result := Classify("<think>step one</think>final answer", "deepseek-r1:7b")

	assert.Equal(t, FamilyThinkTags, result.Family)
	assert.True(t, result.HasThinking)
	assert.Equal(t, "step one", result.Thinking)
	assert.Equal(t, "final answer", result.FinalAnswer)
}

func TestClassify_PlainModelKeepsInputVerbatim(t *testing.T) {
	input := "<think>step one</think>final answer"

	result := Classify(input, "llama3.1")

	assert.Equal(t, FamilyPlain, result.Family)
	assert.False(t, result.HasThinking)
	assert.Empty(t, result.Thinking)
	assert.Equal(t, input, result.FinalAnswer)
}

func TestClassify_MissingEndMarker(t *testing.T) {
	input := "<think>reasoning that never closes"

	result := Classify(input, "qwq:32b")

	assert.Equal(t, FamilyThinkTags, result.Family)
	assert.False(t, result.HasThinking)
	assert.Equal(t, input, result.FinalAnswer)
}

func TestClassify_NoMarkersOnThinkTagModel(t *testing.T) {
	result := Classify("just an answer", "deepseek-reasoner")

	assert.Equal(t, FamilyThinkTags, result.Family)
	assert.False(t, result.HasThinking)
	assert.Equal(t, "just an answer", result.FinalAnswer)
}

func TestClassify_EmptyThinkingBlock(t *testing.T) {
	result := Classify("<think>  </think>answer", "qwen3:8b")

	assert.False(t, result.HasThinking)
	assert.Empty(t, result.Thinking)
	assert.Equal(t, "answer", result.FinalAnswer)
}

func TestClassify_TextBeforeMarkerIsKept(t *testing.T) {
	result := Classify("prefix <think>why</think> suffix", "deepseek-r1")

	assert.Equal(t, "why", result.Thinking)
	assert.Equal(t, "prefix  suffix", result.FinalAnswer)
}

func TestFamilyForModel(t *testing.T) {
	assert.Equal(t, FamilyThinkTags, FamilyForModel("DeepSeek-R1:70B"))
	assert.Equal(t, FamilyThinkTags, FamilyForModel("qwq"))
	assert.Equal(t, FamilyPlain, FamilyForModel("gpt-4o"))
	assert.Equal(t, FamilyPlain, FamilyForModel(""))
}
