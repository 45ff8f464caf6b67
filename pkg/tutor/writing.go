package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rhazera/lingora/pkg/gen"
)

const (
	correctionSeparator = "%%"
	correctionPrefix    = "CORRECTION:"
)

// Review is the tutor's response to a piece of learner writing: the
// corrected text, when the tutor found something to fix, and a free-form
// reply continuing the exchange.
type Review struct {
	Corrected string
	Reply     string
}

// WritingService reviews learner writing through the one-shot generation
// endpoint.
type WritingService struct {
	client *gen.Client
	lang   LanguageConfig
}

func NewWritingService(client *gen.Client, lang LanguageConfig) *WritingService {
	return &WritingService{client: client, lang: lang}
}

// Review submits learner text and parses the correction convention out of
// the reply.
func (s *WritingService) Review(ctx context.Context, text string) (Review, error) {
	req := gen.Request{
		Prompt: text,
		SystemInstruction: fmt.Sprintf(
			"You are a %s writing tutor for a %s-speaking %s learner. "+
				"If the text contains mistakes, start your answer with %q followed by the corrected text, "+
				"then %q, then your reply. If there is nothing to correct, just reply.",
			s.lang.Target, s.lang.Native, s.lang.Level, correctionPrefix, correctionSeparator),
	}
	resp, err := s.client.Generate(ctx, req)
	if err != nil {
		return Review{}, err
	}
	return parseReview(resp.Text), nil
}

// parseReview splits a response on the correction convention. The parse is
// tolerant: without the marker the whole text is the reply, and a stray
// separator without the prefix leaves the text untouched.
func parseReview(text string) Review {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, correctionPrefix) {
		return Review{Reply: trimmed}
	}
	rest := strings.TrimPrefix(trimmed, correctionPrefix)
	corrected, reply, found := strings.Cut(rest, correctionSeparator)
	if !found {
		return Review{Corrected: strings.TrimSpace(corrected)}
	}
	return Review{
		Corrected: strings.TrimSpace(corrected),
		Reply:     strings.TrimSpace(reply),
	}
}
