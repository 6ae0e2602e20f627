package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSummarizeEchoesComments(t *testing.T) {
	out := summarize([]openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "Rules\n[SATISFIED] Great coffee\n[DISSATISFIED] Slow\n[NEUTRAL] Fine\n"},
		{Role: openai.ChatMessageRoleUser, Content: "[SATISFIED] not evidence"},
	})

	var parsed struct {
		Summary      string   `json:"summary"`
		TopIssues    []string `json:"topIssues"`
		TopStrengths []string `json:"topStrengths"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, []string{"Slow"}, parsed.TopIssues)
	assert.Equal(t, []string{"Great coffee"}, parsed.TopStrengths)
	assert.Contains(t, parsed.Summary, "[NEUTRAL] Fine")
	assert.NotContains(t, parsed.Summary, "not evidence")
}

func TestCompletionsHandlerEchoesLastUserTurn(t *testing.T) {
	body := `{"model":"gpt-4o-mini","messages":[{"role":"system","content":"x"},{"role":"user","content":"hello"}]}`
	req := httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader(body))
	rr := httptest.NewRecorder()

	completionsHandler(zap.NewNop())(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp openai.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "echo: hello", resp.Choices[0].Message.Content)
}
