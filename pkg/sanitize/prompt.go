package sanitize

import (
	"strings"
	"unicode/utf8"
)

// MaxPromptInputLength caps user input before it is interpolated into a
// model prompt. Anything longer is truncated, not rejected.
const MaxPromptInputLength = 2000

// promptDelimiters are role-markers and instruction-boundary tokens a user
// could use to break out of the skill instruction template.
var promptDelimiters = []string{
	"<|im_start|>",
	"<|im_end|>",
	"<|system|>",
	"<|user|>",
	"<|assistant|>",
	"[INST]",
	"[/INST]",
	"<<SYS>>",
	"<</SYS>>",
	"### System:",
	"### Instruction:",
	"system:",
	"assistant:",
}

// HardenPromptInput strips known prompt-injection delimiter sequences from
// user input and caps its length before interpolation into any model prompt.
func HardenPromptInput(text string) string {
	for _, delim := range promptDelimiters {
		text = replaceInsensitive(text, delim, " ")
	}
	text = strings.TrimSpace(text)
	return truncateRunes(text, MaxPromptInputLength)
}

// truncateRunes caps s at limit bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
