package postprocess

import "testing"

func TestRemoveThinkingBlocks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "no thinking blocks",
			input:    "他笑了。",
			expected: "他笑了。",
		},
		{
			name:     "think block",
			input:    "<think>先确认人物名</think>他笑了。",
			expected: "他笑了。",
		},
		{
			name:     "multiline reasoning block",
			input:    "开头<reasoning>\nline one\nline two\n</reasoning>结尾",
			expected: "开头结尾",
		},
		{
			name:     "case insensitive",
			input:    "<THINK>x</THINK>正文",
			expected: "正文",
		},
		{
			name:     "truncated thinking block",
			input:    "正文<think>model was cut off",
			expected: "正文",
		},
		{
			name:     "only thinking",
			input:    "<thinking>nothing else</thinking>",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := removeThinkingBlocks(tt.input)
			if result != tt.expected {
				t.Errorf("removeThinkingBlocks(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRemoveAnswerPrefixes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no prefix",
			input:    "他笑了。",
			expected: "他笑了。",
		},
		{
			name:     "english prefix",
			input:    "Here's the translation: 他笑了。",
			expected: "他笑了。",
		},
		{
			name:     "chinese full-width colon",
			input:    "以下是翻译：\n他笑了。",
			expected: "他笑了。",
		},
		{
			name:     "short chinese prefix",
			input:    "译文: 他笑了。",
			expected: "他笑了。",
		},
		{
			name:     "prefix not at start",
			input:    "他说：译文：没有",
			expected: "他说：译文：没有",
		},
		{
			name:     "mention without colon",
			input:    "翻译是一门艺术。",
			expected: "翻译是一门艺术。",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := removeAnswerPrefixes(tt.input)
			if result != tt.expected {
				t.Errorf("removeAnswerPrefixes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "dialogue quotes are kept",
			input:    "“你好。”",
			expected: "“你好。”",
		},
		{
			name:     "fenced answer",
			input:    "```markdown\n他笑了。\n```",
			expected: "他笑了。",
		},
		{
			name:     "all phases",
			input:    "<think>plan</think>\n以下是译文：\n```\n他笑了。\n\n她也笑了。\n```",
			expected: "他笑了。\n\n她也笑了。",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.expected {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
