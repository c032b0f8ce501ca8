package rag

import (
	"strings"
	"text/template"
)

// qaTemplate is the fixed question-answering prompt. The instruction to
// admit not knowing is the only guard against fabricated answers when
// retrieval comes back empty, so its wording must not be changed.
const qaTemplate = `Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.Context}}

Question: {{.Question}}
Answer:`

var promptTmpl = template.Must(template.New("qa").Parse(qaTemplate))

type promptData struct {
	Context  string
	Question string
}

// renderPrompt fills the two template slots. Chunk texts are joined by
// blank lines; an empty retrieval renders an empty context block.
func renderPrompt(contextParts []string, question string) (string, error) {
	var b strings.Builder
	err := promptTmpl.Execute(&b, promptData{
		Context:  strings.Join(contextParts, "\n\n"),
		Question: question,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
