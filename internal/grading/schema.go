package grading

import "github.com/EberSantana/flowedu-sub004/internal/llm"

// JudgmentSchema defines the JSON the judge must return for one answer.
// Numeric fields carry no bounds: out-of-range values are clamped after
// parsing rather than failing the whole judgment.
var JudgmentSchema = &llm.Schema{
	Name:        "answer-judgment",
	Description: "Assessment of a student's free-text answer with a self-reported confidence",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":        "number",
				"description": "Score from 0 to 100 for the answer's correctness and completeness",
			},
			"confidence": map[string]any{
				"type":        "number",
				"description": "How certain you are of the score, 0 to 100",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "Short constructive feedback addressed to the student",
			},
			"strengths": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "What the answer gets right",
			},
			"weaknesses": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "What is missing or wrong",
			},
			"needsReview": map[string]any{
				"type":        "boolean",
				"description": "Whether a teacher should check this grade",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Brief justification of the score for the teacher",
			},
		},
		"required": []any{
			"score", "confidence", "feedback", "strengths",
			"weaknesses", "needsReview", "reasoning",
		},
		"additionalProperties": false,
	},
}
