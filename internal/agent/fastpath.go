package agent

import (
	"math/rand"
	"strings"
)

// simpleGreetings lists exact-match greetings (English and Chinese) that
// bypass the LLM entirely. Matching is case-insensitive against the input
// with surrounding punctuation trimmed.
var simpleGreetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "hola": {}, "yo": {},
	"你好": {}, "您好": {}, "嗨": {}, "哈喽": {}, "嘿": {},
	"早": {}, "早上好": {}, "中午好": {}, "下午好": {}, "晚上好": {},
	"晚安": {},
}

const greetingPunctuation = "!！?？.。,，~"

// isSimpleGreeting reports whether input is a bare greeting with no other
// content, making it eligible for the process_input fast path.
func isSimpleGreeting(input string) bool {
	clean := strings.Trim(strings.ToLower(strings.TrimSpace(input)), greetingPunctuation)
	_, ok := simpleGreetings[clean]
	return ok
}

var greetingResponses = []string{
	"Hi there! Good to see you. What can I help with?",
	"Hey! I'm your assistant, happy to help.",
	"Hello! What can I do for you today?",
	"Hi! Glad to help however I can.",
	"Hey there, what's on your mind?",
}

// greetingResponse returns a canned greeting reply for the fast path.
func greetingResponse() string {
	return greetingResponses[rand.Intn(len(greetingResponses))]
}
