// Package postprocess removes model artifacts from completion output before
// it is written as a translated chunk or handed to the glossary parser.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean strips, in order:
//  1. Thinking / reasoning blocks, including an unterminated trailing one
//  2. A leading "here is the translation:" style prefix
//  3. A code fence wrapping the whole answer
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeAnswerPrefixes(text)
	text = removeCodeFence(text)
	return strings.TrimSpace(text)
}

// --- thinking blocks ---

// Go's RE2 has no backreferences, so each tag pair is listed explicitly.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- answer prefixes ---

// Anchored at the start and require a colon, so prose that merely mentions
// a translation is left alone.
var answerPrefixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:chinese |translated )?(?:translation|text)\s*[:：]`),
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:chinese |translated )?(?:translation|text)\s*[:：]`),
	regexp.MustCompile(`^(?:以下是|下面是)?(?:中文)?(?:翻译|译文)(?:结果|内容)?(?:如下)?\s*[:：]`),
}

func removeAnswerPrefixes(text string) string {
	for _, re := range answerPrefixes {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- code fences ---

var codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\n\\s*```$")

func removeCodeFence(text string) string {
	if m := codeFenceRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return m[1]
	}
	return text
}
