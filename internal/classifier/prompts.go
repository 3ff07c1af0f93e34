package classifier

import (
	"fmt"

	"github.com/kalambet/cvsift/internal/llm"
)

const stage1System = `You are a hiring screen. You receive a fitness condition and the plain text of a candidate's resume. Decide whether the candidate meets the condition.

Respond with a single JSON object and nothing else:
{"result": "passed" | "rejected", "reason": "<one short sentence>"}`

const nameSystem = `You receive the plain text of a resume. Extract the candidate's display name.

Respond with a single JSON object and nothing else:
{"name": "<candidate name>"}`

const stage2System = `You are a demanding hiring screen. The candidate already meets the baseline condition. Decide whether the candidate clearly EXCEEDS it: strong evidence of above-bar experience, scope, or impact. Be strict; when in doubt, answer false.

Respond with a single JSON object and nothing else:
{"exceeds": true | false, "reason": "<one short sentence>"}`

const stage3System = `You are an extremely selective hiring screen. The candidate already clearly exceeds the condition. Decide whether this is an ELITE, once-a-year candidate relative to the condition. Almost every candidate should be false.

Respond with a single JSON object and nothing else:
{"elite": true | false, "reason": "<one short sentence>"}`

func conditionPayload(condition, resumeText string, maxChars int) string {
	return fmt.Sprintf("Condition:\n%s\n\nResume:\n%s", condition, truncateRunes(resumeText, maxChars))
}

func stage1Messages(condition, resumeText string, maxChars int) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: stage1System},
		{Role: llm.RoleUser, Content: conditionPayload(condition, resumeText, maxChars)},
	}
}

func nameMessages(resumeText string, maxChars int) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: nameSystem},
		{Role: llm.RoleUser, Content: "Resume:\n" + truncateRunes(resumeText, maxChars)},
	}
}

func stage2Messages(condition, resumeText string, maxChars int) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: stage2System},
		{Role: llm.RoleUser, Content: conditionPayload(condition, resumeText, maxChars)},
	}
}

func stage3Messages(condition, resumeText string, maxChars int) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: stage3System},
		{Role: llm.RoleUser, Content: conditionPayload(condition, resumeText, maxChars)},
	}
}

func stage1Schema() *llm.Schema {
	return &llm.Schema{
		Type: "object",
		Properties: map[string]llm.SchemaProperty{
			"result": {Type: "string", Description: `One of: "passed", "rejected"`},
			"reason": {Type: "string", Description: "One short sentence"},
		},
		Required: []string{"result", "reason"},
	}
}

func nameSchema() *llm.Schema {
	return &llm.Schema{
		Type: "object",
		Properties: map[string]llm.SchemaProperty{
			"name": {Type: "string", Description: "Candidate display name"},
		},
		Required: []string{"name"},
	}
}

func stage2Schema() *llm.Schema {
	return &llm.Schema{
		Type: "object",
		Properties: map[string]llm.SchemaProperty{
			"exceeds": {Type: "boolean"},
			"reason":  {Type: "string", Description: "One short sentence"},
		},
		Required: []string{"exceeds", "reason"},
	}
}

func stage3Schema() *llm.Schema {
	return &llm.Schema{
		Type: "object",
		Properties: map[string]llm.SchemaProperty{
			"elite":  {Type: "boolean"},
			"reason": {Type: "string", Description: "One short sentence"},
		},
		Required: []string{"elite", "reason"},
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
