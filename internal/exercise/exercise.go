// Package exercise loads the read-only exercise catalogue that answers are
// graded against.
package exercise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/EberSantana/flowedu-sub004/internal/apperr"
	"github.com/EberSantana/flowedu-sub004/internal/store"
)

// File is the YAML import format.
type File struct {
	Exercises []ExerciseDoc `yaml:"exercises" validate:"required,min=1,dive"`
}

// ExerciseDoc is one exercise in an import file.
type ExerciseDoc struct {
	ID        string        `yaml:"id" validate:"required"`
	TeacherID string        `yaml:"teacher" validate:"required"`
	Title     string        `yaml:"title" validate:"required"`
	Questions []QuestionDoc `yaml:"questions" validate:"required,min=1,dive"`
}

// QuestionDoc is one question in an import file.
type QuestionDoc struct {
	Number        int      `yaml:"number" validate:"gte=1"`
	Text          string   `yaml:"text" validate:"required"`
	Kind          string   `yaml:"kind" validate:"omitempty,oneof=objective subjective"`
	Options       []string `yaml:"options"`
	CorrectAnswer string   `yaml:"answer" validate:"required_if=Kind objective"`
	Points        int      `yaml:"points" validate:"gte=0"`
}

// Catalogue reads and writes exercises.
type Catalogue struct {
	repo     store.ExerciseRepo
	validate *validator.Validate
}

// NewCatalogue creates a Catalogue over repo.
func NewCatalogue(repo store.ExerciseRepo) *Catalogue {
	return &Catalogue{repo: repo, validate: validator.New()}
}

// Parse decodes and validates an import document.
func (c *Catalogue) Parse(r io.Reader) ([]store.Exercise, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode exercise file: %w", err)
	}
	if err := c.validate.Struct(f); err != nil {
		return nil, &apperr.ValidationError{Reason: err.Error(), Err: err}
	}

	seen := make(map[string]bool)
	out := make([]store.Exercise, 0, len(f.Exercises))
	for _, doc := range f.Exercises {
		if seen[doc.ID] {
			return nil, apperr.Invalid("exercises", "duplicate exercise id %q", doc.ID)
		}
		seen[doc.ID] = true

		ex, err := toExercise(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

func toExercise(doc ExerciseDoc) (store.Exercise, error) {
	ex := store.Exercise{
		ID:        doc.ID,
		TeacherID: doc.TeacherID,
		Title:     doc.Title,
		CreatedAt: time.Now(),
	}
	numbers := make(map[int]bool)
	for _, q := range doc.Questions {
		if numbers[q.Number] {
			return store.Exercise{}, apperr.Invalid("questions", "exercise %q: duplicate question number %d", doc.ID, q.Number)
		}
		numbers[q.Number] = true

		kind := store.KindSubjective
		if q.Kind == string(store.KindObjective) {
			kind = store.KindObjective
		}
		question := store.Question{
			ExerciseID: doc.ID,
			Number:     q.Number,
			Text:       strings.TrimSpace(q.Text),
			Kind:       kind,
			Options:    q.Options,
			Points:     q.Points,
		}
		if a := strings.TrimSpace(q.CorrectAnswer); a != "" {
			question.CorrectAnswer = &a
		}
		ex.Questions = append(ex.Questions, question)
	}
	return ex, nil
}

// Import parses r and upserts every exercise in it.
func (c *Catalogue) Import(ctx context.Context, r io.Reader) ([]store.Exercise, error) {
	exercises, err := c.Parse(r)
	if err != nil {
		return nil, err
	}
	for i := range exercises {
		if err := c.repo.Upsert(ctx, &exercises[i]); err != nil {
			return nil, fmt.Errorf("store exercise %q: %w", exercises[i].ID, err)
		}
	}
	return exercises, nil
}

// ImportFile imports a YAML file from disk.
func (c *Catalogue) ImportFile(ctx context.Context, path string) ([]store.Exercise, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return c.Import(ctx, f)
}

// Question looks up one question and its exercise.
func (c *Catalogue) Question(ctx context.Context, exerciseID string, number int) (*store.Question, *store.Exercise, error) {
	q, ex, err := c.repo.Question(ctx, exerciseID, number)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, &apperr.NotFoundError{Kind: "question", ID: fmt.Sprintf("%s#%d", exerciseID, number)}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load question: %w", err)
	}
	return q, ex, nil
}

// List returns the exercises owned by teacherID, or all when empty.
func (c *Catalogue) List(ctx context.Context, teacherID string) ([]store.Exercise, error) {
	return c.repo.List(ctx, teacherID)
}
