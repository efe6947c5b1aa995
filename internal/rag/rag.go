// Package rag turns retrieved commit records into a natural-language answer.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/seanblong/timemachine/internal/ai"
)

const systemPrompt = "You answer questions about the git commit history of a software repository."

const promptTemplate = `Use the git commit records below to answer the subsequent question.
Do not describe the commits individually. Provide an overall summary to address the question.

Git Commit Records:
%s

Question: %s`

// Responder generates answers grounded on retrieved context records. The
// model's text is returned verbatim; nothing checks factual grounding.
type Responder struct {
	Client ai.Client
}

func NewResponder(client ai.Client) *Responder {
	return &Responder{Client: client}
}

// Answer builds the augmented prompt from the retrieved contents and runs a
// temperature-0 chat completion. Errors propagate; there is no retry and no
// fallback answer.
func (r *Responder) Answer(ctx context.Context, question string, contexts []string) (string, error) {
	return r.Client.Chat(ctx, systemPrompt, Prompt(question, contexts))
}

// Prompt joins the context records with a fixed separator and embeds them in
// the instruction template.
func Prompt(question string, contexts []string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(contexts, "\n* "), question)
}
