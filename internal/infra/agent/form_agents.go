package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domainagent "github.com/yanqian/ai-helloworld/internal/domain/agent"
	"github.com/yanqian/ai-helloworld/internal/domain/formpipeline"
)

// RetryConfig mirrors the original agent service's settings.AGENT_MAX_RETRIES
// / AGENT_RETRY_DELAY_SECONDS, shared by all three phase agents below.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultRetryConfig matches the original's max_retries=1, retry_delay=2.0.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 1, RetryDelay: 2 * time.Second}
}

// FormParserAgent implements formpipeline.ParserAgent: phase 1's structured
// HTML-to-questions extraction.
type FormParserAgent struct {
	runner *domainagent.Runner
	retry  RetryConfig
}

// NewFormParserAgent constructs a FormParserAgent.
func NewFormParserAgent(runner *domainagent.Runner, retry RetryConfig) *FormParserAgent {
	return &FormParserAgent{runner: runner, retry: retry}
}

// ParseFormStructure builds the parser prompt following
// agent_service.py's parse_form_structure (instructions → session
// instructions → personal instructions → HTML → visible text), attaches
// screenshots only in extended mode, and parses the structured response.
func (a *FormParserAgent) ParseFormStructure(ctx context.Context, model string, in formpipeline.AnalyzeInput) ([]formpipeline.Question, error) {
	var b strings.Builder
	b.WriteString("Please analyze the following HTML and describe every form question with its inputs and context.\n")
	b.WriteString("Follow the JSON structure and extraction rules specified in your system instructions.\n")

	if strings.TrimSpace(in.ClipboardText) != "" {
		b.WriteString("\nPersonal Instructions specifically for this Session:\n")
		b.WriteString(in.ClipboardText)
		b.WriteString("\n")
	}
	if strings.TrimSpace(in.PersonalInstructions) != "" {
		b.WriteString("\nPersonal Instructions:\n")
		b.WriteString(in.PersonalInstructions)
		b.WriteString("\n")
	}

	b.WriteString("\nHTML Code:\n```html\n")
	b.WriteString(in.HTML)
	b.WriteString("\n```\n\nVisible Text Content:\n")
	b.WriteString(in.VisibleText)
	b.WriteString("\n")

	parts := domainagent.Text(b.String())
	if in.Mode == formpipeline.ModeExtended {
		for _, shot := range in.Screenshots {
			parts = append(parts, domainagent.PromptPart{ImageBytes: shot})
		}
	}

	result := a.runner.RunStructured(ctx, model, SchemaParserOutput, parts, a.retry.MaxRetries, a.retry.RetryDelay)
	if result.Status != domainagent.StatusSuccess {
		return nil, fmt.Errorf("parser agent: %s", result.Message)
	}
	return decodeQuestions(result.Output)
}

func decodeQuestions(output map[string]any) ([]formpipeline.Question, error) {
	raw, ok := output["questions"]
	if !ok {
		return nil, fmt.Errorf("parser agent: response missing \"questions\"")
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parser agent: re-encode questions: %w", err)
	}
	var questions []formpipeline.Question
	if err := json.Unmarshal(encoded, &questions); err != nil {
		return nil, fmt.Errorf("parser agent: decode questions: %w", err)
	}
	return questions, nil
}

var _ formpipeline.ParserAgent = (*FormParserAgent)(nil)

// FormSolverAgent implements formpipeline.SolverAgent: phase 2's
// unstructured per-question solution generation.
type FormSolverAgent struct {
	runner *domainagent.Runner
	retry  RetryConfig
}

// NewFormSolverAgent constructs a FormSolverAgent.
func NewFormSolverAgent(runner *domainagent.Runner, retry RetryConfig) *FormSolverAgent {
	return &FormSolverAgent{runner: runner, retry: retry}
}

// Solve invokes the model with the already-assembled solver prompt plus any
// retrieved images (screenshots are never attached here; only phase 1 may
// use them, per spec's question-slicing design note).
func (a *FormSolverAgent) Solve(ctx context.Context, model, prompt string, images [][]byte) (string, error) {
	parts := domainagent.Text(prompt)
	for _, img := range images {
		parts = append(parts, domainagent.PromptPart{ImageBytes: img})
	}
	result := a.runner.RunUnstructured(ctx, model, parts, a.retry.MaxRetries, a.retry.RetryDelay)
	if result.Status != domainagent.StatusSuccess {
		return "", fmt.Errorf("solver agent: %s", result.Message)
	}
	return result.Text, nil
}

var _ formpipeline.SolverAgent = (*FormSolverAgent)(nil)

// FormActionAgent implements formpipeline.ActionAgent: phase 3's structured
// conversion of one batch of question/solution pairs into raw actions.
type FormActionAgent struct {
	runner *domainagent.Runner
	retry  RetryConfig
}

// NewFormActionAgent constructs a FormActionAgent.
func NewFormActionAgent(runner *domainagent.Runner, retry RetryConfig) *FormActionAgent {
	return &FormActionAgent{runner: runner, retry: retry}
}

type actionBatchQuestion struct {
	Index           int                          `json:"index"`
	ID              string                       `json:"id"`
	Type            string                       `json:"type"`
	InteractionData formpipeline.InteractionData `json:"interaction_data"`
	Question        string                       `json:"question"`
	Solution        string                       `json:"solution"`
}

// GenerateActions builds the action-generator prompt following
// agent_service.py's generate_actions_from_solutions: only interaction_data
// and the question text are passed, alongside the phase-2 solution.
func (a *FormActionAgent) GenerateActions(ctx context.Context, model string, batch []formpipeline.QuestionSolution) ([]formpipeline.RawAction, error) {
	items := make([]actionBatchQuestion, len(batch))
	for i, pair := range batch {
		items[i] = actionBatchQuestion{
			Index:           i + 1,
			ID:              pair.Question.ID,
			Type:            pair.Question.Type,
			InteractionData: pair.Question.InteractionData,
			Question:        pair.Question.QuestionData.Question,
			Solution:        pair.Solution,
		}
	}
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("action agent: encode batch: %w", err)
	}

	prompt := fmt.Sprintf(`Convert the following form questions and their solutions into precise browser actions.

Questions and Solutions:
`+"```json\n%s\n```"+`

For each question:
1. Read the solution
2. Match the solution to the appropriate inputs
3. Generate the correct actions using the exact selectors provided

Output a flat list of all actions across all questions.
`, string(payload))

	result := a.runner.RunStructured(ctx, model, SchemaActionOutput, domainagent.Text(prompt), a.retry.MaxRetries, a.retry.RetryDelay)
	if result.Status != domainagent.StatusSuccess {
		return nil, fmt.Errorf("action agent: %s", result.Message)
	}
	return decodeActions(result.Output)
}

func decodeActions(output map[string]any) ([]formpipeline.RawAction, error) {
	raw, ok := output["actions"]
	if !ok {
		return nil, fmt.Errorf("action agent: response missing \"actions\"")
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("action agent: re-encode actions: %w", err)
	}
	var actions []formpipeline.RawAction
	if err := json.Unmarshal(encoded, &actions); err != nil {
		return nil, fmt.Errorf("action agent: decode actions: %w", err)
	}
	return actions, nil
}

var _ formpipeline.ActionAgent = (*FormActionAgent)(nil)
