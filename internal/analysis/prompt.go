package analysis

import (
	"fmt"
	"strings"

	"github.com/feedbackflow/ai-analysis/internal/models"
)

const summaryInstruction = `Analyze the customer comments above and return a JSON object with exactly these keys:
- "summary": an executive summary in 2 to 3 sentences
- "topIssues": an array with the 3 most important problems customers mention
- "topStrengths": an array with the 3 things customers appreciate most
If fewer than 3 issues or strengths appear in the comments, return only those that do.
Return only the JSON object, with no other text.`

// FormatComment renders one comment the way it appears in the prompt.
func FormatComment(c models.Comment) string {
	return "[" + strings.ToUpper(string(c.Satisfaction)) + "] " + c.Text
}

// BuildSystemPrompt renders the grounding prompt. The comments are the only
// evidence the model is allowed to use.
func BuildSystemPrompt(businessName, language string, comments []models.Comment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a customer feedback analyst for the business %q.\n", businessName)
	b.WriteString("Rules:\n")
	b.WriteString("- Use ONLY the customer comments listed below as evidence. Each comment is written as [SATISFACTION] text.\n")
	b.WriteString("- Never invent statistics, percentages, trends or facts that cannot be derived directly from these comments. If the comments do not answer a question, say so.\n")
	fmt.Fprintf(&b, "- Always answer in %s.\n", language)
	b.WriteString("- Be concise and actionable.\n\n")

	fmt.Fprintf(&b, "Customer comments from the last 30 days (%d):\n", len(comments))
	for _, c := range comments {
		b.WriteString(FormatComment(c))
		b.WriteByte('\n')
	}

	return b.String()
}
