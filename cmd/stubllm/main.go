// Command stubllm serves an OpenAI-compatible chat completion endpoint that
// echoes its input. Point OPENAI_BASE_URL at it for local runs.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	port := os.Getenv("STUB_LLM_PORT")
	if port == "" {
		port = "9000"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", completionsHandler(logger))
	mux.HandleFunc("/v1/chat/completions", completionsHandler(logger))

	logger.Info("stub llm starting", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Fatal("stub llm failed", zap.Error(err))
	}
}

func completionsHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		jsonMode := req.ResponseFormat != nil && req.ResponseFormat.Type == openai.ChatCompletionResponseFormatTypeJSONObject

		var content string
		if jsonMode {
			content = summarize(req.Messages)
		} else {
			content = "echo: " + lastUserTurn(req.Messages)
		}

		logger.Info("completion",
			zap.String("model", req.Model),
			zap.Int("messages", len(req.Messages)),
			zap.Bool("json_mode", jsonMode),
		)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:      "stub-" + time.Now().UTC().Format("20060102150405"),
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}
}

// summarize echoes the comment lines of the system prompt back as a summary.
func summarize(messages []openai.ChatCompletionMessage) string {
	var issues, strengths, lines []string
	for _, m := range messages {
		if m.Role != openai.ChatMessageRoleSystem {
			continue
		}
		for _, line := range strings.Split(m.Content, "\n") {
			switch {
			case strings.HasPrefix(line, "[DISSATISFIED] "):
				issues = append(issues, strings.TrimPrefix(line, "[DISSATISFIED] "))
			case strings.HasPrefix(line, "[SATISFIED] "):
				strengths = append(strengths, strings.TrimPrefix(line, "[SATISFIED] "))
			case !strings.HasPrefix(line, "[NEUTRAL] "):
				continue
			}
			lines = append(lines, line)
		}
	}

	out, _ := json.Marshal(map[string]interface{}{
		"summary":      "Stub summary of: " + strings.Join(lines, " | "),
		"topIssues":    firstN(issues, 3),
		"topStrengths": firstN(strengths, 3),
	})
	return string(out)
}

func lastUserTurn(messages []openai.ChatCompletionMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == openai.ChatMessageRoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func firstN(s []string, n int) []string {
	if s == nil {
		return []string{}
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}
