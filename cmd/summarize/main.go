package main

// Summarize a local file with the configured LLM provider:
//   go run ./cmd/summarize -file notes.pdf
//   go run ./cmd/summarize -file notes.pdf -ask "What is osmosis?"

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"studyhub-backend/internal/extract"
	"studyhub-backend/internal/llm"
	openai "studyhub-backend/internal/llm/openai"
	"studyhub-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to a pdf, docx or text file")
	question := flag.String("ask", "", "Ask a question about the file instead of summarizing it")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		exitErr("file path is required")
	}
	data, err := os.ReadFile(*filePath)
	if err != nil {
		exitErr(fmt.Sprintf("read file: %v", err))
	}

	ctx := context.Background()
	text, err := extract.ExtractTextFromBytes(ctx, data, mimeFromExt(*filePath), filepath.Base(*filePath))
	if err != nil {
		exitErr(fmt.Sprintf("extract text: %v", err))
	}

	base, err := openai.NewClient(cfg.OpenAIAPIKey, *model)
	if err != nil {
		exitErr(err.Error())
	}
	client := llm.NewRetryingClient(base)

	var out any
	if q := strings.TrimSpace(*question); q != "" {
		answer, err := client.GenerateChatbotResponse(ctx, text, q)
		if err != nil {
			exitErr(fmt.Sprintf("llm chat: %v", err))
		}
		out = map[string]string{"question": q, "response": answer}
	} else {
		summary, err := client.GenerateDocumentSummary(ctx, text)
		if err != nil {
			exitErr(fmt.Sprintf("llm summarize: %v", err))
		}
		out = summary
	}

	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	pretty = append(pretty, '\n')
	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".md":
		return "text/markdown"
	default:
		return "text/plain"
	}
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
