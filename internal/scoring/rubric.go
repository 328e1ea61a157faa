package scoring

import "github.com/starprep/starprep/internal/llm"

// Category is one scored dimension of a behavioral answer, worth 0-20
// points.
type Category struct {
	Name        string
	Description string
	Guidance    string
}

var categories = []Category{
	{
		Name:        "scoreStoryStrength",
		Description: "Score the story's strength and relevance (0-20 points)",
		Guidance: `Does the story showcase a meaningful challenge? Was the candidate in a
leading, proactive, or decision-making role? Is the story unique and memorable?`,
	},
	{
		Name:        "scoreStructureClarity",
		Description: "Score the story's structure and clarity (0-20 points)",
		Guidance: `Was the story organized using STAR, with a logical beginning, middle,
and end? Was it easy to follow?`,
	},
	{
		Name:        "scorePersonalOwnership",
		Description: "Score the candidate's personal ownership and action (0-20 points)",
		Guidance: `Does the candidate use "I" more than "we"? Is their individual
contribution obvious? Is there evidence of leadership and problem-solving?`,
	},
	{
		Name:        "scoreImpactResults",
		Description: "Score the impact and results of the story (0-20 points)",
		Guidance: `Was there a measurable or observable result? Did they quantify their
impact? Is the result tied to their actions?`,
	},
	{
		Name:        "scoreDeliveryAuthenticity",
		Description: "Score the delivery, authenticity and reflection (0-20 points)",
		Guidance: `Did they speak with natural tone and energy? Did they include personal
growth or reflection? Did they sound authentic rather than rehearsed?`,
	},
}

func functionDef(c Category) llm.FunctionDef {
	return llm.FunctionDef{
		Name:        c.Name,
		Description: c.Description,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"score": map[string]any{
					"type":        "integer",
					"description": "Score from 0-20",
					"minimum":     0,
					"maximum":     20,
				},
				"strengths": map[string]any{
					"type":        "string",
					"description": "What the candidate did well in this category",
				},
				"improvements": map[string]any{
					"type":        "string",
					"description": "How the candidate could improve in this category",
				},
				"explanation": map[string]any{
					"type":        "string",
					"description": "Explanation of the score",
				},
			},
			"required": []string{"score", "strengths", "improvements", "explanation"},
		},
	}
}

// band maps a total score to the human-readable verdict shown on the
// feedback view.
func band(total int) string {
	switch {
	case total <= 40:
		return "Needs major improvement"
	case total <= 60:
		return "Some strengths, but lacking in multiple areas"
	case total <= 80:
		return "Strong, but refine structure/impact/delivery"
	default:
		return "Excellent response, polished and ready"
	}
}
