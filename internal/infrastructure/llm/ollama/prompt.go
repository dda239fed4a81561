package ollama

import (
	"fmt"
	"strings"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
)

const maxRecentTranscript = 6

func buildPlannerPrompt(question string, recent []domain.MessageRecord) string {
	var b strings.Builder
	b.WriteString(`You are a retrieval planner for a scripture question-answering engine.
The corpus contains granths split into prakrans, each prakran holding numbered chopais with meanings.
Return strict JSON object with keys:
intent (string), sub_queries (array of short search strings), required_facts (array of strings).
Each sub query must be self-contained and keep granth, prakran and chopai numbers from the question.
No markdown, no extra keys.
`)
	if transcript := formatTranscript(recent); transcript != "" {
		b.WriteString("\nRecent conversation:\n")
		b.WriteString(transcript)
	}
	b.WriteString("\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n")
	return b.String()
}

var styleInstructions = map[string]string{
	"hi":      "Answer in Hindi using Devanagari script.",
	"gu":      "Answer in Gujarati script.",
	"hi_latn": "Answer in Hindi written with Latin letters (Hinglish).",
	"gu_latn": "Answer in Gujarati written with Latin letters.",
	"en":      "Answer in simple English.",
}

func buildAnswerPrompt(question string, citations []domain.Citation, style string, recent []domain.MessageRecord) string {
	var contextBuilder strings.Builder
	for idx, citation := range citations {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] granth=%s prakran=%s page=%d score=%.3f\n",
			idx+1,
			citation.GranthName,
			citation.PrakranName,
			citation.PageNumber,
			citation.Score,
		))
		if len(citation.ChopaiLines) > 0 {
			contextBuilder.WriteString(strings.Join(citation.ChopaiLines, "\n"))
			contextBuilder.WriteString("\n")
		}
		if citation.MeaningText != "" {
			contextBuilder.WriteString("Meaning: " + citation.MeaningText + "\n")
		}
		if citation.PrevContext != "" {
			contextBuilder.WriteString("Before: " + citation.PrevContext + "\n")
		}
		if citation.NextContext != "" {
			contextBuilder.WriteString("After: " + citation.NextContext + "\n")
		}
		contextBuilder.WriteString("\n")
	}

	instruction, ok := styleInstructions[style]
	if !ok {
		instruction = styleInstructions["en"]
	}

	var b strings.Builder
	b.WriteString(`Answer the user question only from the cited passages below.
Quote chopai lines exactly as written, never paraphrase verse text.
Reference passages as [1], [2] and so on.
If the passages do not contain the answer, say so directly.
`)
	b.WriteString(instruction)
	b.WriteString("\n")
	if transcript := formatTranscript(recent); transcript != "" {
		b.WriteString("\nRecent conversation:\n")
		b.WriteString(transcript)
	}
	b.WriteString("\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\nPassages:\n")
	b.WriteString(contextBuilder.String())
	return b.String()
}

func formatTranscript(recent []domain.MessageRecord) string {
	if len(recent) == 0 {
		return ""
	}
	if len(recent) > maxRecentTranscript {
		recent = recent[len(recent)-maxRecentTranscript:]
	}
	var b strings.Builder
	for _, msg := range recent {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		const maxLine = 300
		if len(text) > maxLine {
			text = text[:maxLine]
		}
		b.WriteString(msg.Role + ": " + text + "\n")
	}
	return b.String()
}
