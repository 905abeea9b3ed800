package processor

import (
	"fmt"

	"github.com/kelsos/design-survey/internal/client"
	"github.com/kelsos/design-survey/internal/models"
)

const systemPrompt = `You are a design consultant helping to analyze design requirements and visual elements. Your task is to:
1. Review the design brief and reference images
2. Suggest appropriate design elements
3. Provide confidence levels for suggestions
4. Note areas needing additional review
5. Structure response in JSON format`

const briefTemplate = `Please review this design brief and the reference images:

Brief: %s

Provide your analysis in this JSON format:
{
    "background_color": {"suggestion": "str", "confidence": "low/medium/high"},
    "text_elements": {"suggestions": [], "confidence": "low/medium/high"},
    "visual_elements": {"suggestions": [], "confidence": "low/medium/high"},
    "review_points": ["areas needing additional review"],
    "overall_confidence": "low/medium/high"
}`

// BuildPrompt renders the fixed design-analysis prompt for a task.
func BuildPrompt(task models.Task) client.Prompt {
	return client.Prompt{
		System: systemPrompt,
		Text:   fmt.Sprintf(briefTemplate, task.UserQuery),
		Images: task.ImageRefs(),
	}
}
