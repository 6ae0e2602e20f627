package analysis

import (
	"strings"
	"testing"

	"github.com/feedbackflow/ai-analysis/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestFormatComment(t *testing.T) {
	assert.Equal(t, "[NEUTRAL] It was fine", FormatComment(models.Comment{Text: "It was fine", Satisfaction: models.Neutral}))
}

func TestBuildSystemPrompt(t *testing.T) {
	comments := []models.Comment{
		{Text: "Slow service", Satisfaction: models.Dissatisfied},
		{Text: "Great coffee", Satisfaction: models.Satisfied},
	}

	prompt := BuildSystemPrompt("Blue Bottle", "Spanish", comments)

	assert.Contains(t, prompt, `"Blue Bottle"`)
	assert.Contains(t, prompt, "Always answer in Spanish.")
	assert.Contains(t, prompt, "Never invent statistics")
	assert.Contains(t, prompt, "(2):")

	slow := strings.Index(prompt, "[DISSATISFIED] Slow service")
	great := strings.Index(prompt, "[SATISFIED] Great coffee")
	assert.True(t, slow >= 0 && great > slow, "comments keep loaded order")
}
