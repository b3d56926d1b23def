package recommend

import (
	"strings"
	"text/template"
)

var promptTmpl = template.Must(template.New("prompt").Parse(`You are an adaptive learning assistant.
A learner has an attention score of {{printf "%.2f" .Score}} on a scale from 0 (distracted) to 1 (fully focused).
{{- if .UserID}}
Learner id: {{.UserID}}.
{{- end}}
They are currently studying:
{{.Context}}

Reply with a single JSON object with exactly these fields:
"suggestion": one short actionable study suggestion,
"explanation": one or two sentences on why it fits their attention level,
"resourceLinks": an array of zero or more URLs.
`))

func renderPrompt(req Request) (string, error) {
	var b strings.Builder
	if err := promptTmpl.Execute(&b, req); err != nil {
		return "", err
	}
	return b.String(), nil
}
