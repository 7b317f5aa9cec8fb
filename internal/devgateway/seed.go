package devgateway

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rpsoft/examflow/internal/model"
)

// ExamSeed couples an exam definition with its answer key. The key maps
// a question id (or, for hand-written seed files, the question text) to
// the correct option id. It is never served to clients.
type ExamSeed struct {
	model.Exam
	AnswerKey map[string]string `json:"answer_key,omitempty"`
}

// LoadSeedFile reads a JSON array of exam seeds.
func LoadSeedFile(path string) ([]ExamSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seeds []ExamSeed
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return seeds, nil
}

// SampleSeed returns a built-in demo exam: three questions, a
// 30-minute limit, two attempts, passing score 11/20.
func SampleSeed() ExamSeed {
	limit := 30
	passing := 11.0
	return ExamSeed{
		Exam: model.Exam{
			Title:            "Evaluación técnica de demostración",
			Description:      "Examen de ejemplo del gateway de desarrollo",
			TimeLimitMinutes: &limit,
			PassingScore:     &passing,
			MaxAttempts:      2,
			Questions: []model.Question{
				{
					Text:         "¿Qué comando inicializa un módulo de Go?",
					QuestionType: model.QuestionTypeMultipleChoice,
					Points:       2,
					Order:        1,
					Options: []model.Option{
						{ID: "a", Text: "go mod init", Order: 1},
						{ID: "b", Text: "go init", Order: 2},
						{ID: "c", Text: "go new module", Order: 3},
					},
				},
				{
					Text:         "Un canal sin búfer bloquea al emisor hasta que alguien recibe.",
					QuestionType: model.QuestionTypeTrueFalse,
					Points:       1,
					Order:        2,
				},
				{
					Text:         "Describe la diferencia entre un slice y un array.",
					QuestionType: model.QuestionTypeShortAnswer,
					Points:       2,
					Order:        3,
				},
			},
		},
		AnswerKey: map[string]string{
			"¿Qué comando inicializa un módulo de Go?":                       "a",
			"Un canal sin búfer bloquea al emisor hasta que alguien recibe.": model.TrueFalseTrue,
		},
	}
}
