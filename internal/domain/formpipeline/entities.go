// Package formpipeline implements the pipeline orchestrator and request
// lifecycle manager: the three-phase Parse→Solve→Act pipeline that turns
// one submitted form into a persisted list of browser actions.
package formpipeline

import "time"

// RequestStatus is a FormRequest's lifecycle state.
type RequestStatus string

const (
	StatusPending         RequestStatus = "pending"
	StatusProcessing      RequestStatus = "processing"
	StatusProcessingStep1 RequestStatus = "processing_step_1"
	StatusProcessingStep2 RequestStatus = "processing_step_2"
	StatusCompleted       RequestStatus = "completed"
	StatusFailed          RequestStatus = "failed"
)

// ActiveStatuses are the statuses that count against the one-active-request
// per-user admission rule.
var ActiveStatuses = []RequestStatus{StatusPending, StatusProcessing, StatusProcessingStep1, StatusProcessingStep2}

// Quality selects the per-phase model class for one request.
type Quality string

const (
	QualityFast     Quality = "fast"
	QualityFastPro  Quality = "fast-pro"
	QualityExact    Quality = "exact"
	QualityExactPro Quality = "exact-pro"
)

// Mode controls whether screenshots are honoured by phase 1.
type Mode string

const (
	ModeBasic    Mode = "basic"
	ModeExtended Mode = "extended"
)

// FormRequest is one analysis job.
type FormRequest struct {
	ID             string        `json:"id"`
	UserID         string        `json:"-"`
	Status         RequestStatus `json:"status"`
	FieldsDetected int           `json:"fields_detected"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// ProgressEvent is one append-only entry in a request's progress log.
type ProgressEvent struct {
	ID        int64          `json:"id"`
	RequestID string         `json:"-"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Progress  *int           `json:"progress,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActionType is the normalized action kind stored per FormAction.
type ActionType string

const (
	ActionFillText       ActionType = "fillText"
	ActionSelectDropdown ActionType = "selectDropdown"
	ActionSelectRadio    ActionType = "selectRadio"
	ActionSelectCheckbox ActionType = "selectCheckbox"
	ActionClick          ActionType = "click"
)

// FormAction is one stored output unit driving a single DOM interaction.
type FormAction struct {
	RequestID  string     `json:"-"`
	ActionType ActionType `json:"action_type"`
	Selector   string     `json:"selector"`
	Value      any        `json:"value"`
	Label      string     `json:"label,omitempty"`
	Question   string     `json:"question,omitempty"`
	OrderIndex int        `json:"order_index"`
}

// SelectionMode constrains how many of a question's options may be chosen.
type SelectionMode string

const (
	SelectionSingle   SelectionMode = "single"
	SelectionMultiple SelectionMode = "multiple"
	SelectionNone     SelectionMode = "none"
)

// QuestionData is the slice of a Question fed to phase 2 (the solver) only.
type QuestionData struct {
	Question         string        `json:"question"`
	RAGContext       string        `json:"rag_context"`
	SolvingHint      string        `json:"solving_hint"`
	SelectionMode    SelectionMode `json:"selection_mode"`
	AvailableOptions []string      `json:"available_options"`
}

// InteractionTarget is one DOM element a question's action may touch.
type InteractionTarget struct {
	Selector string `json:"selector"`
	Value    any    `json:"value"`
	Label    string `json:"label"`
}

// InteractionData is the slice of a Question fed to phase 3 (the action
// generator) only.
type InteractionData struct {
	PrimarySelector string              `json:"primary_selector"`
	ActionType      string              `json:"action_type"`
	Targets         []InteractionTarget `json:"targets"`
}

// Question is produced by phase 1 and consumed by phases 2 and 3. Its two
// halves are handed to each phase in isolation, per spec's question-slicing
// design note.
type Question struct {
	ID              string          `json:"id"`
	GroupID         string          `json:"group_id"`
	Type            string          `json:"type"`
	QuestionData    QuestionData    `json:"question_data"`
	InteractionData InteractionData `json:"interaction_data"`
}

// QuestionSolution pairs a Question with its phase-2 plain-text solution.
type QuestionSolution struct {
	Question Question
	Solution string
	Success  bool
}

// AnalyzeInput is the sanitized request body driving one pipeline run; its
// json tags match the analyze endpoint's request body directly.
type AnalyzeInput struct {
	HTML                 string   `json:"html" binding:"required"`
	VisibleText          string   `json:"visible_text" binding:"required"`
	ClipboardText        string   `json:"clipboard_text"`
	Screenshots          [][]byte `json:"screenshots"`
	Mode                 Mode     `json:"mode"`
	Quality              Quality  `json:"quality"`
	PersonalInstructions string   `json:"personal_instructions"`
}
