package llm

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/summary.txt
	summaryPrompt string
	//go:embed prompts/chat.txt
	chatPrompt string
)

// maxPromptDocumentRunes bounds how much document text is inlined.
const maxPromptDocumentRunes = 60000

// SummarySystemPrompt returns the instruction for summary generation.
func SummarySystemPrompt() string {
	return summaryPrompt
}

// SummaryUserPrompt wraps the document text for summarization.
func SummaryUserPrompt(text string) string {
	return "Document text:\n\n" + truncateRunes(text, maxPromptDocumentRunes)
}

// ChatSystemPrompt inlines the full document text into the chat instruction.
func ChatSystemPrompt(documentText string) string {
	return strings.Replace(chatPrompt, "{{DOCUMENT}}", truncateRunes(documentText, maxPromptDocumentRunes), 1)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
