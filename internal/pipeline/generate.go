package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/graphgen-api/internal/credential"
	"github.com/phrazzld/graphgen-api/internal/platform/logger"
)

// Generation modes.
const (
	ModeAtomic     = "atomic"
	ModeAggregated = "aggregated"
	ModeMultiHop   = "multi_hop"
	ModeCoT        = "cot"
)

// Output formats.
const (
	FormatAlpaca   = "Alpaca"
	FormatShareGPT = "Sharegpt"
	FormatChatML   = "ChatML"
)

var modeInstructions = map[string]string{
	ModeAtomic:     "Write one question per passage that can be answered from a single fact in it.",
	ModeAggregated: "Write questions whose answers combine information from several of the passages.",
	ModeMultiHop:   "Write questions that need two or more reasoning steps across different passages to answer.",
	ModeCoT:        "Write questions and answer each with step-by-step reasoning that ends in a final answer.",
}

const generateSystemPrompt = `You create question-answer training data from source passages.
Format every pair exactly as:
Question: <question>
Answer: <answer>
Separate pairs with a blank line and output nothing else.`

// QAPair is one generated question with its answer.
type QAPair struct {
	Question string
	Answer   string
}

func (g *GraphGen) generate(ctx context.Context, cfg Config, communities [][]Chunk, workDir string) error {
	log := logger.FromContext(ctx)

	mode := cfg.String("mode", "")
	instruction, ok := modeInstructions[mode]
	if !ok {
		return Errorf(CauseConfig, "unsupported generate.mode %q", mode)
	}
	format := cfg.String("data_format", FormatAlpaca)
	if _, err := formatPairs(format, nil); err != nil {
		return err
	}

	synthesizer, err := g.models.ForRole(ctx, credential.RoleSynthesizer)
	if err != nil {
		return NewError(CauseConfig, err)
	}

	var pairs []QAPair
	for i, community := range communities {
		prompt := buildGeneratePrompt(instruction, community)
		raw, err := synthesizer.Generate(ctx, generateSystemPrompt, prompt)
		if err != nil {
			return NewError(CausePipeline, fmt.Errorf("generate for community %d: %w", i, err))
		}
		parsed := parseQAPairs(raw)
		if len(parsed) == 0 {
			log.WarnContext(ctx, "model returned no parsable pairs", "community", i)
		}
		pairs = append(pairs, parsed...)
	}

	records, err := formatPairs(format, pairs)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return NewError(CausePipeline, err)
	}
	if err := os.WriteFile(filepath.Join(workDir, QAFileName), data, 0o644); err != nil {
		return NewError(CauseFilesystem, err)
	}

	log.InfoContext(ctx, "generate step finished",
		"mode", mode,
		"data_format", format,
		"pairs", len(pairs))
	return nil
}

func buildGeneratePrompt(instruction string, community []Chunk) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n")
	for i, chunk := range community {
		fmt.Fprintf(&b, "Passage %d:\n%s\n\n", i+1, chunk.Content)
	}
	return b.String()
}

// parseQAPairs extracts "Question:"/"Answer:" pairs. Answers may span lines.
func parseQAPairs(raw string) []QAPair {
	var (
		pairs   []QAPair
		current *QAPair
		inAns   bool
	)
	flush := func() {
		if current != nil && current.Question != "" && strings.TrimSpace(current.Answer) != "" {
			current.Answer = strings.TrimSpace(current.Answer)
			pairs = append(pairs, *current)
		}
		current, inAns = nil, false
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case hasLabel(trimmed, "Question:"):
			flush()
			current = &QAPair{Question: strings.TrimSpace(trimmed[len("Question:"):])}
		case current != nil && hasLabel(trimmed, "Answer:"):
			current.Answer = strings.TrimSpace(trimmed[len("Answer:"):])
			inAns = true
		case current != nil && inAns:
			current.Answer += "\n" + line
		}
	}
	flush()
	return pairs
}

func hasLabel(line, label string) bool {
	return len(line) >= len(label) && strings.EqualFold(line[:len(label)], label)
}

type message struct {
	Role    string `json:"role,omitempty"`
	From    string `json:"from,omitempty"`
	Content string `json:"content,omitempty"`
	Value   string `json:"value,omitempty"`
}

// formatPairs renders pairs in one of the supported training data formats.
func formatPairs(format string, pairs []QAPair) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(pairs))
	switch format {
	case FormatAlpaca:
		for _, p := range pairs {
			out = append(out, map[string]any{"instruction": p.Question, "input": "", "output": p.Answer})
		}
	case FormatShareGPT:
		for _, p := range pairs {
			out = append(out, map[string]any{"conversations": []message{
				{From: "human", Value: p.Question},
				{From: "gpt", Value: p.Answer},
			}})
		}
	case FormatChatML:
		for _, p := range pairs {
			out = append(out, map[string]any{"messages": []message{
				{Role: "user", Content: p.Question},
				{Role: "assistant", Content: p.Answer},
			}})
		}
	default:
		return nil, Errorf(CauseConfig, "unsupported generate.data_format %q", format)
	}
	return out, nil
}
