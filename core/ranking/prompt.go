package ranking

import (
	"encoding/json"
	"fmt"

	"github.com/aidline/dispatch/core/model"
)

// BuildPrompt renders the ranking instruction sent to the oracle. The
// priority order stated here is enforced by the oracle, not by this service;
// the dispatcher only validates the output shape.
func BuildPrompt(resume map[string]any, pool []model.Candidate) string {
	if resume == nil {
		resume = map[string]any{}
	}
	resumeJSON, _ := json.MarshalIndent(resume, "", "  ")
	poolJSON, _ := json.MarshalIndent(pool, "", "  ")

	return fmt.Sprintf(`You are an emergency-response volunteer matching system.

You MUST return ONLY valid JSON.
Do NOT include markdown.
Do NOT include explanations outside JSON.
Do NOT include extra text.

Your task:
Rank volunteers from BEST to WORST for this specific help request.

Ranking priorities (in order of importance):
1) Medical / emergency relevance to the requester
2) Practical skills and real-world experience
3) Distance in kilometers (closer is better, but NEVER override skill or safety)
4) Reliability indicators if present (notes, experience, consistency)

Requester:
%s

Volunteers:
%s

You MUST return EXACTLY this JSON format:
[
  {
    "volunteerId": "string",
    "score": 0.0,
    "distanceKm": 0.0,
    "reason": "short explanation of why this volunteer is ranked here"
  }
]
`, resumeJSON, poolJSON)
}
