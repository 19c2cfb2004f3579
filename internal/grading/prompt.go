package grading

import (
	"bytes"
	"text/template"
)

const systemPrompt = `You are an experienced teacher grading a student's written answer.

Rules:
- Score the answer from 0 to 100 for correctness and completeness against the question and, when given, the reference answer.
- Reward correct reasoning expressed in the student's own words. Do not require the reference wording.
- Report confidence from 0 to 100. Use a low confidence when the question is ambiguous, the answer is partially legible, or the reference answer does not settle the grade.
- Feedback is addressed to the student: one or two sentences, encouraging and specific.
- List concrete strengths and weaknesses. Use empty lists when there are none.
- Reasoning is for the teacher: one sentence explaining the score.
- Respond in the same language as the student's answer.`

var userTemplate = template.Must(template.New("judgment").Parse(`Question: {{.Question}}
{{if .CorrectAnswer}}Reference answer: {{.CorrectAnswer}}
{{end}}{{if .Context}}Context: {{.Context}}
{{end}}
Student's answer:
{{.StudentAnswer}}`))

func buildUserMessage(in Input) (string, error) {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, in); err != nil {
		return "", err
	}
	return buf.String(), nil
}
