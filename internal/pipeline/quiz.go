package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/phrazzld/graphgen-api/internal/credential"
	"github.com/phrazzld/graphgen-api/internal/platform/logger"
)

// DefaultQuizSamples is the number of statements generated per chunk.
const DefaultQuizSamples = 2

// Judgement records how well the trainee model understood one chunk.
type Judgement struct {
	ChunkID string  `json:"chunk_id"`
	Samples int     `json:"samples"`
	Correct int     `json:"correct"`
	Loss    float64 `json:"loss"`
}

type statement struct {
	text  string
	truth bool
}

const quizSystemPrompt = `You write true/false quiz statements about a passage.
Write each statement on its own line, prefixed with "TRUE: " when the passage supports it or "FALSE: " when the passage contradicts it.
Output nothing else.`

const judgeSystemPrompt = `You judge whether a statement is correct. Answer with a single word: yes or no.`

// quizAndJudge asks the synthesizer for statements about each chunk and has the
// trainee judge them; a chunk's loss is the fraction judged wrongly.
func (g *GraphGen) quizAndJudge(ctx context.Context, cfg Config, chunks []Chunk, workDir string) ([]Judgement, error) {
	log := logger.FromContext(ctx)

	samples := cfg.Int("quiz_samples", DefaultQuizSamples)
	if samples <= 0 {
		return nil, Errorf(CauseConfig, "quiz_and_judge.quiz_samples must be positive, got %d", samples)
	}

	synthesizer, err := g.models.ForRole(ctx, credential.RoleSynthesizer)
	if err != nil {
		return nil, NewError(CauseConfig, err)
	}
	trainee, err := g.models.ForRole(ctx, credential.RoleTrainee)
	if err != nil {
		return nil, NewError(CauseConfig, err)
	}

	judgements := make([]Judgement, 0, len(chunks))
	for _, chunk := range chunks {
		prompt := fmt.Sprintf("Write %d statements, mixing true and false ones, about this passage:\n\n%s", samples, chunk.Content)
		raw, err := synthesizer.Generate(ctx, quizSystemPrompt, prompt)
		if err != nil {
			return nil, NewError(CausePipeline, fmt.Errorf("quiz for %s: %w", chunk.ID, err))
		}

		statements := parseStatements(raw, samples)
		j := Judgement{ChunkID: chunk.ID, Samples: len(statements)}
		for _, s := range statements {
			answer, err := trainee.Generate(ctx, judgeSystemPrompt, s.text)
			if err != nil {
				return nil, NewError(CausePipeline, fmt.Errorf("judge for %s: %w", chunk.ID, err))
			}
			if judgedTrue(answer) == s.truth {
				j.Correct++
			}
		}
		if j.Samples > 0 {
			j.Loss = float64(j.Samples-j.Correct) / float64(j.Samples)
		}
		judgements = append(judgements, j)
	}

	if err := writeJSONLines(filepath.Join(workDir, JudgementsFileName), judgements); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "quiz_and_judge step finished",
		"chunks", len(judgements),
		"synthesizer", synthesizer.Name(),
		"trainee", trainee.Name())
	return judgements, nil
}

func parseStatements(raw string, limit int) []statement {
	var out []statement
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789."))
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "TRUE:"):
			out = append(out, statement{text: strings.TrimSpace(line[len("TRUE:"):]), truth: true})
		case strings.HasPrefix(upper, "FALSE:"):
			out = append(out, statement{text: strings.TrimSpace(line[len("FALSE:"):]), truth: false})
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

func judgedTrue(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return strings.HasPrefix(a, "yes") || strings.HasPrefix(a, "true")
}
