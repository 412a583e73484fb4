package chat

// SuggestedQuestions are the starter questions offered while a conversation
// is empty.
var SuggestedQuestions = []string{
	"Which stream should I choose after 10th?",
	"What are the best engineering colleges in India?",
	"How should I prepare for JEE Main?",
	"What career options are available after Commerce?",
	"Tell me about scholarships for Science students",
	"What are emerging career fields in 2025?",
}

// Suggestion returns the n-th suggested question, counting from 1.
func Suggestion(n int) (string, bool) {
	if n < 1 || n > len(SuggestedQuestions) {
		return "", false
	}
	return SuggestedQuestions[n-1], true
}
