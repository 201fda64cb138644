package correct

import "strings"

// SystemPrompt frames the model as a conservative copy editor.
const SystemPrompt = `You are an assistant that corrects book text while staying faithful to the original content.`

// CorrectionPrompt lists the only edits the model may make. The text may be in
// any language; the answer must stay in that language.
const CorrectionPrompt = `Correct the following text, fixing only:
1. Hyphens left over from line breaks inside a word (e.g. "draw- bridge" must become "drawbridge").
2. Double spaces (e.g. "text  space" must become "text space").
3. Paragraphs cut in the middle of a sentence (join paragraphs that belong to the same sentence or idea, keeping the HTML structure).

Rules:
- Do NOT change spelling, wording, or legitimate hyphens (e.g. "well-known" stays as it is).
- Preserve every HTML tag and attribute, including <img> tags, exactly as written.
- Keep the text in its original language.
- Return ONLY the corrected HTML, with no commentary and no code fences.`

// BuildPrompt creates the user message for one chunk.
func BuildPrompt(chunkText string) string {
	var sb strings.Builder
	sb.WriteString(CorrectionPrompt)
	sb.WriteString("\n\n---\n")
	sb.WriteString(chunkText)
	return sb.String()
}
