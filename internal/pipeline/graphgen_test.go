package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/phrazzld/graphgen-api/internal/credential"
	"github.com/phrazzld/graphgen-api/internal/platform/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel answers according to the system prompt it is given.
type fakeModel struct {
	name string
	err  error

	mu      sync.Mutex
	prompts []string
}

func (m *fakeModel) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	switch system {
	case quizSystemPrompt:
		return "1. TRUE: the sky is blue\n2. FALSE: the sky is green", nil
	case judgeSystemPrompt:
		if strings.Contains(prompt, "blue") {
			return "Yes.", nil
		}
		return "yes", nil
	default:
		return "Question: What colour is the sky?\nAnswer: Blue.\n\nQuestion: Why?\nAnswer: Rayleigh\nscattering.", nil
	}
}

func (m *fakeModel) Name() string { return m.name }

type fakeModels struct {
	byRole map[credential.Role]*fakeModel
}

func (f *fakeModels) ForRole(ctx context.Context, role credential.Role) (llm.ChatModel, error) {
	m, ok := f.byRole[role]
	if !ok {
		return nil, fmt.Errorf("%w for %s", llm.ErrMissingModel, role)
	}
	return m, nil
}

func newFakeModels() *fakeModels {
	return &fakeModels{byRole: map[credential.Role]*fakeModel{
		credential.RoleSynthesizer: {name: "synth"},
		credential.RoleTrainee:     {name: "trainee"},
	}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data", "graphgen", "1718000000")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func baseRunConfig(input string) Config {
	return Config{
		"read":     map[string]any{"input_file": input},
		"split":    map[string]any{"chunk_size": 1024, "chunk_overlap": 100},
		"search":   map[string]any{"enabled": false},
		"generate": map[string]any{"mode": "atomic", "data_format": "Alpaca"},
	}
}

func TestGraphGen_Run(t *testing.T) {
	input := writeInput(t, "raw_demo.jsonl",
		`{"content": "The sky is blue because of Rayleigh scattering."}`+"\n\n"+
			`{"content": "Grass is green because of chlorophyll."}`+"\n")
	workDir := newRunDir(t)
	models := newFakeModels()

	result, err := NewGraphGen(models, discardLogger(), slog.LevelInfo).
		Run(context.Background(), baseRunConfig(input), workDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(workDir, "1718000000_atomic.log"), result.LogFile)
	assert.Equal(t, []string{ChunksFileName, QAFileName}, result.Artifacts)

	logContent, err := os.ReadFile(result.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(logContent), "graphgen run finished")
	assert.Contains(t, string(logContent), "run_id=1718000000")

	chunks, err := os.ReadFile(filepath.Join(workDir, ChunksFileName))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(chunks), "\n"))

	var qa []map[string]any
	data, err := os.ReadFile(filepath.Join(workDir, QAFileName))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &qa))
	require.Len(t, qa, 2)
	assert.Equal(t, "What colour is the sky?", qa[0]["instruction"])
	assert.Equal(t, "Blue.", qa[0]["output"])
	assert.Equal(t, "Rayleigh\nscattering.", qa[1]["output"])

	synth := models.byRole[credential.RoleSynthesizer]
	require.Len(t, synth.prompts, 1, "both chunks fit in one community")
	assert.Contains(t, synth.prompts[0], "Passage 2:")
}

func TestGraphGen_Run_QuizAndJudge(t *testing.T) {
	input := writeInput(t, "notes.txt", "The sky is blue.")
	workDir := newRunDir(t)

	cfg := baseRunConfig(input)
	cfg["quiz_and_judge"] = map[string]any{"enabled": true, "quiz_samples": 2}
	cfg["generate"] = map[string]any{"mode": "cot", "data_format": "ChatML"}

	result, err := NewGraphGen(newFakeModels(), discardLogger(), slog.LevelDebug).
		Run(context.Background(), cfg, workDir)
	require.NoError(t, err)
	assert.Equal(t, []string{ChunksFileName, JudgementsFileName, QAFileName}, result.Artifacts)
	assert.FileExists(t, filepath.Join(workDir, "1718000000_cot.log"))

	data, err := os.ReadFile(filepath.Join(workDir, JudgementsFileName))
	require.NoError(t, err)
	var j Judgement
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &j))
	assert.Equal(t, 2, j.Samples)
	// the trainee says yes to the false statement
	assert.Equal(t, 1, j.Correct)
	assert.InDelta(t, 0.5, j.Loss, 1e-9)

	var qa []map[string]any
	data, err = os.ReadFile(filepath.Join(workDir, QAFileName))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &qa))
	require.NotEmpty(t, qa)
	assert.Contains(t, qa[0], "messages")
}

func TestGraphGen_Run_Failures(t *testing.T) {
	input := writeInput(t, "notes.md", "# Notes\n\nThe sky is blue.")

	tests := []struct {
		name      string
		cfg       func() Config
		models    func() *fakeModels
		wantCause Cause
		wantLog   bool
	}{
		{
			name: "missing generate mode",
			cfg: func() Config {
				c := baseRunConfig(input)
				delete(c, "generate")
				return c
			},
			wantCause: CauseConfig,
		},
		{
			name: "unknown mode",
			cfg: func() Config {
				c := baseRunConfig(input)
				c["generate"] = map[string]any{"mode": "poetry"}
				return c
			},
			wantCause: CauseConfig,
		},
		{
			name: "missing input file",
			cfg: func() Config {
				return baseRunConfig(filepath.Join(t.TempDir(), "missing.txt"))
			},
			wantCause: CauseConfig,
			wantLog:   true,
		},
		{
			name: "unsupported data format",
			cfg: func() Config {
				c := baseRunConfig(input)
				c["generate"] = map[string]any{"mode": "atomic", "data_format": "CSV"}
				return c
			},
			wantCause: CauseConfig,
			wantLog:   true,
		},
		{
			name: "invalid split",
			cfg: func() Config {
				c := baseRunConfig(input)
				c["split"] = map[string]any{"chunk_size": 10, "chunk_overlap": 10}
				return c
			},
			wantCause: CauseConfig,
			wantLog:   true,
		},
		{
			name: "model failure",
			cfg:  func() Config { return baseRunConfig(input) },
			models: func() *fakeModels {
				m := newFakeModels()
				m.byRole[credential.RoleSynthesizer].err = errors.New("401 unauthorized")
				return m
			},
			wantCause: CausePipeline,
			wantLog:   true,
		},
		{
			name: "no synthesizer configured",
			cfg:  func() Config { return baseRunConfig(input) },
			models: func() *fakeModels {
				return &fakeModels{byRole: map[credential.Role]*fakeModel{}}
			},
			wantCause: CauseConfig,
			wantLog:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := newFakeModels()
			if tt.models != nil {
				models = tt.models()
			}
			workDir := newRunDir(t)
			cfg := tt.cfg()

			_, err := NewGraphGen(models, discardLogger(), slog.LevelInfo).Run(context.Background(), cfg, workDir)

			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantCause, pe.Cause)
			if tt.wantLog {
				assert.FileExists(t, LogFilePath(workDir, cfg))
			}
			assert.NoFileExists(t, filepath.Join(workDir, QAFileName))
		})
	}
}

func TestReadDocuments(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []string
		wantErr bool
	}{
		{name: "text", file: "a.txt", content: "hello", want: []string{"hello"}},
		{name: "json strings and objects", file: "a.json", content: `["one", {"content": "two"}]`, want: []string{"one", "two"}},
		{name: "jsonl skips blank lines", file: "a.jsonl", content: "{\"content\":\"x\"}\n\n\"y\"\n", want: []string{"x", "y"}},
		{name: "json not an array", file: "b.json", content: `{"content": "x"}`, wantErr: true},
		{name: "item without content", file: "c.jsonl", content: `{"title": "x"}`, wantErr: true},
		{name: "unsupported extension", file: "a.pdf", content: "%PDF", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := readDocuments(writeInput(t, tt.file, tt.content))
			if tt.wantErr {
				var pe *Error
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, CauseConfig, pe.Cause)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, docs)
		})
	}
}

func TestPartition(t *testing.T) {
	chunks := []Chunk{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}
	cfg := Config{"method_params": map[string]any{"max_units_per_community": 2}}

	groups := partition(chunks, nil, cfg)
	require.Len(t, groups, 3)
	assert.Equal(t, []Chunk{{ID: "a"}, {ID: "b"}}, groups[0])
	assert.Equal(t, []Chunk{{ID: "e"}}, groups[2])

	judged := partition(chunks, []Judgement{{ChunkID: "d", Loss: 1}, {ChunkID: "b", Loss: 0.5}}, cfg)
	assert.Equal(t, []Chunk{{ID: "d"}, {ID: "b"}}, judged[0])
	assert.Equal(t, []Chunk{{ID: "a"}, {ID: "c"}}, judged[1])

	assert.Len(t, partition(chunks, nil, Config{}), 1)
}

func TestParseQAPairs(t *testing.T) {
	raw := "Here you go:\nQuestion: Q1?\nAnswer: A1.\nquestion: Q2?\nANSWER: Step one.\nStep two.\nQuestion: dangling"
	pairs := parseQAPairs(raw)
	require.Len(t, pairs, 2)
	assert.Equal(t, QAPair{Question: "Q1?", Answer: "A1."}, pairs[0])
	assert.Equal(t, QAPair{Question: "Q2?", Answer: "Step one.\nStep two."}, pairs[1])

	assert.Empty(t, parseQAPairs("no structure here"))
}

func TestFormatPairs(t *testing.T) {
	pairs := []QAPair{{Question: "q", Answer: "a"}}

	alpaca, err := formatPairs(FormatAlpaca, pairs)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"instruction": "q", "input": "", "output": "a"}, alpaca[0])

	sharegpt, err := formatPairs(FormatShareGPT, pairs)
	require.NoError(t, err)
	data, err := json.Marshal(sharegpt)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"conversations":[{"from":"human","value":"q"},{"from":"gpt","value":"a"}]}]`, string(data))

	chatml, err := formatPairs(FormatChatML, pairs)
	require.NoError(t, err)
	data, err = json.Marshal(chatml)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"messages":[{"role":"user","content":"q"},{"role":"assistant","content":"a"}]}]`, string(data))

	_, err = formatPairs("CSV", pairs)
	assert.Error(t, err)
}
