package tutor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rhazera/lingora/pkg/codec"
	"github.com/rhazera/lingora/pkg/frames"
	"github.com/rhazera/lingora/pkg/gen"
)

// exerciseSchema constrains the generation response to a decodable payload.
var exerciseSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "passage": {"type": "string"},
    "passageAudio": {
      "type": "object",
      "properties": {
        "data": {"type": "string"},
        "rate": {"type": "integer"}
      }
    },
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "prompt": {"type": "string"},
          "options": {"type": "array", "items": {"type": "string"}},
          "answer": {"type": "integer"}
        },
        "required": ["prompt", "options", "answer"]
      }
    }
  },
  "required": ["passage", "questions"]
}`)

type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

type passageAudio struct {
	Data string `json:"data"`
	Rate int    `json:"rate"`
}

// Exercise is one listening-comprehension unit: a short passage in the
// target language, optionally its synthesized audio, and questions about it.
type Exercise struct {
	Passage   string        `json:"passage"`
	Audio     *passageAudio `json:"passageAudio,omitempty"`
	Questions []Question    `json:"questions"`
}

// HasAudio reports whether the endpoint returned synthesized passage audio.
func (e *Exercise) HasAudio() bool {
	return e.Audio != nil && e.Audio.Data != ""
}

// PassageBuffer decodes the synthesized passage audio for playback.
func (e *Exercise) PassageBuffer(seq uint64) (*frames.PlaybackBuffer, error) {
	if !e.HasAudio() {
		return nil, fmt.Errorf("exercise has no passage audio")
	}
	return codec.Decode(seq, codec.Chunk{Data: e.Audio.Data, SampleRate: e.Audio.Rate}, codec.DecodeConfig{})
}

// ExerciseService generates listening exercises through the one-shot
// generation endpoint.
type ExerciseService struct {
	client *gen.Client
	lang   LanguageConfig
}

func NewExerciseService(client *gen.Client, lang LanguageConfig) *ExerciseService {
	return &ExerciseService{client: client, lang: lang}
}

// Generate produces one exercise about the given topic with n questions.
func (s *ExerciseService) Generate(ctx context.Context, topic string, n int) (Exercise, error) {
	if n <= 0 {
		n = 3
	}
	req := gen.Request{
		Prompt: fmt.Sprintf(
			"Write a short passage in %s about %q suitable for a %s learner, "+
				"then %d multiple-choice comprehension questions about it. "+
				"Each question has 3 or 4 options; answer is the zero-based index of the correct option.",
			s.lang.Target, topic, s.lang.Level, n),
		SystemInstruction: fmt.Sprintf("You are a %s language teacher creating listening exercises.", s.lang.Target),
		ResponseSchema:    exerciseSchema,
	}

	var ex Exercise
	if err := s.client.GenerateJSON(ctx, req, &ex); err != nil {
		return Exercise{}, err
	}
	if err := validateExercise(ex); err != nil {
		return Exercise{}, err
	}
	return ex, nil
}

func validateExercise(ex Exercise) error {
	if ex.Passage == "" {
		return fmt.Errorf("exercise missing passage")
	}
	if len(ex.Questions) == 0 {
		return fmt.Errorf("exercise has no questions")
	}
	for i, q := range ex.Questions {
		if q.Prompt == "" {
			return fmt.Errorf("question %d missing prompt", i)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d needs at least two options", i)
		}
		if q.Answer < 0 || q.Answer >= len(q.Options) {
			return fmt.Errorf("question %d answer index %d out of range", i, q.Answer)
		}
	}
	return nil
}
