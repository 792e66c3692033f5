// Package usage maps provider-specific token accounting into one shape.
//
// Every field is optional: nil means the provider did not report it, which
// is different from zero. The two mappers differ on purpose: the
// OpenAI-compatible mapper copies total_tokens verbatim and never derives it,
// the Anthropic mapper always derives the total as input+output.
package usage

import "encoding/json"

// Usage is the normalized token usage of one call.
type Usage struct {
	PromptTokens     *int `json:"promptTokens,omitempty"`
	CompletionTokens *int `json:"completionTokens,omitempty"`
	TotalTokens      *int `json:"totalTokens,omitempty"`
}

// OpenAIRaw is the usage object of OpenAI-compatible APIs. Some compatible
// servers use the input/output naming instead.
type OpenAIRaw struct {
	PromptTokens     *int `json:"prompt_tokens,omitempty"`
	CompletionTokens *int `json:"completion_tokens,omitempty"`
	TotalTokens      *int `json:"total_tokens,omitempty"`
	InputTokens      *int `json:"input_tokens,omitempty"`
	OutputTokens     *int `json:"output_tokens,omitempty"`
}

// AnthropicRaw is the usage object of the Anthropic Messages API.
type AnthropicRaw struct {
	InputTokens  *int `json:"input_tokens,omitempty"`
	OutputTokens *int `json:"output_tokens,omitempty"`
}

// FromOpenAI normalizes an OpenAI-compatible usage object. A nil raw yields
// a nil Usage.
func FromOpenAI(raw *OpenAIRaw) *Usage {
	if raw == nil {
		return nil
	}
	return &Usage{
		PromptTokens:     firstSet(raw.PromptTokens, raw.InputTokens),
		CompletionTokens: firstSet(raw.CompletionTokens, raw.OutputTokens),
		TotalTokens:      copyInt(raw.TotalTokens),
	}
}

// FromAnthropic normalizes an Anthropic usage object. Missing counts are
// treated as zero when deriving the total.
func FromAnthropic(raw *AnthropicRaw) *Usage {
	if raw == nil {
		return nil
	}
	total := valueOf(raw.InputTokens) + valueOf(raw.OutputTokens)
	return &Usage{
		PromptTokens:     copyInt(raw.InputTokens),
		CompletionTokens: copyInt(raw.OutputTokens),
		TotalTokens:      &total,
	}
}

// DecodeOpenAI normalizes a raw JSON usage object. Absent, null or
// malformed input yields nil.
func DecodeOpenAI(data json.RawMessage) *Usage {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var raw OpenAIRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	return FromOpenAI(&raw)
}

// DecodeAnthropic normalizes a raw JSON usage object. Absent, null or
// malformed input yields nil.
func DecodeAnthropic(data json.RawMessage) *Usage {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var raw AnthropicRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	return FromAnthropic(&raw)
}

// Consistent reports whether a supplied total covers both parts. Usages
// missing any of the three fields are considered consistent.
func (u *Usage) Consistent() bool {
	if u == nil || u.PromptTokens == nil || u.CompletionTokens == nil || u.TotalTokens == nil {
		return true
	}
	return *u.TotalTokens >= max(*u.PromptTokens, *u.CompletionTokens)
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func valueOf(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func firstSet(ps ...*int) *int {
	for _, p := range ps {
		if p != nil {
			return copyInt(p)
		}
	}
	return nil
}
