package agent

import "strings"

// intent labels produced by the keyword-based classifier in process_input.
const (
	IntentSearch              = "search"
	IntentCalculation         = "calculation"
	IntentTimeQuery           = "time_query"
	IntentImageGeneration     = "image_generation"
	IntentHelpRequest         = "help_request"
	IntentGeneralConversation = "general_conversation"
)

// intentKeywords maps each intent to the keyword set (English and Chinese)
// that triggers it. Checked in order; the first match wins.
var intentKeywords = []struct {
	intent   string
	keywords []string
}{
	{IntentSearch, []string{"search", "find", "look", "搜索", "查找"}},
	{IntentCalculation, []string{"calculate", "math", "compute", "计算"}},
	{IntentTimeQuery, []string{"time", "date", "when", "时间", "日期"}},
	{IntentImageGeneration, []string{"image", "picture", "generate", "create", "图片", "生成"}},
	{IntentHelpRequest, []string{"help", "what", "how", "帮助", "怎么"}},
}

// classifyIntent derives a lightweight intent label from user input via
// keyword matching. It is a heuristic classifier, not NLU: good enough to
// hint the system prompt, not to gate behavior.
func classifyIntent(input string) string {
	lower := strings.ToLower(input)
	for _, entry := range intentKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.intent
			}
		}
	}
	return IntentGeneralConversation
}
