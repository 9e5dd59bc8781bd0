package query

import (
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// BuildPrompt assembles the generation prompt from retrieved passages and the
// question. Passages are joined in retrieval order and the total context is
// capped at maxContextChars, cutting at passage boundaries.
func BuildPrompt(question string, passages []*models.Passage, maxContextChars int) string {
	var ctx strings.Builder
	for _, p := range passages {
		if maxContextChars > 0 && ctx.Len()+len(p.Content) > maxContextChars && ctx.Len() > 0 {
			break
		}
		if ctx.Len() > 0 {
			ctx.WriteString("\n\n")
		}
		ctx.WriteString(p.Content)
	}

	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(ctx.String())
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
