package formpipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// RawAction is one action as emitted by the action-generator agent, before
// normalization.
type RawAction struct {
	ActionType string `json:"action_type"`
	Selector   string `json:"selector"`
	Value      any    `json:"value"`
	Label      string `json:"label"`
	Question   string `json:"question"`
}

// actionTypeAliases is the fixed alias table for raw action type strings.
// Any type not listed here (including unrecognized values) falls back to
// fillText.
var actionTypeAliases = map[string]ActionType{
	"fillText":       ActionFillText,
	"selectDropdown": ActionSelectDropdown,
	"selectRadio":    ActionSelectRadio,
	"selectCheckbox": ActionSelectCheckbox,
	"click":          ActionClick,
	"setText":        ActionFillText,
}

// normalizeActionType resolves a raw action type string to its stored type.
// Idempotent: normalizeActionType(string(normalizeActionType(x))) ==
// normalizeActionType(x) for every input, since every stored ActionType
// value is also a key mapping to itself.
func normalizeActionType(raw string) ActionType {
	if t, ok := actionTypeAliases[raw]; ok {
		return t
	}
	return ActionFillText
}

// nullValueDroppable is the set of stored types for which a null value
// means the action carries no information and should be dropped.
var nullValueDroppable = map[ActionType]bool{
	ActionFillText:       true,
	ActionSelectDropdown: true,
	ActionSelectCheckbox: true,
}

var radioGroupMarkers = []string{"data-field-index", "data-row-index", "data-row-id", "data-question-id"}

var radioGroupMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-field-index\s*=\s*"([^"]*)"`),
	regexp.MustCompile(`data-row-index\s*=\s*"([^"]*)"`),
	regexp.MustCompile(`data-row-id\s*=\s*"([^"]*)"`),
	regexp.MustCompile(`data-question-id\s*=\s*"([^"]*)"`),
}

// PostProcessActions runs the post-processing pipeline: alias
// normalization, null-value drop, and duplicate collapse (including the
// radio-group collapse rule), in that order, preserving overall positional
// order in the output.
func PostProcessActions(raw []RawAction) []FormAction {
	normalized := make([]FormAction, 0, len(raw))
	for _, a := range raw {
		stored := normalizeActionType(a.ActionType)
		if nullValueDroppable[stored] && a.Value == nil {
			continue
		}
		normalized = append(normalized, FormAction{
			ActionType: stored,
			Selector:   a.Selector,
			Value:      a.Value,
			Label:      a.Label,
			Question:   a.Question,
		})
	}

	deduped := collapseDuplicates(normalized)
	for i := range deduped {
		deduped[i].OrderIndex = i
	}
	return deduped
}

// collapseDuplicates removes earlier entries sharing a dedup key with a
// later entry, keeping the last occurrence's content at its original
// position. This both removes exact-triple repeats and collapses a
// selectRadio group down to its final selection.
func collapseDuplicates(actions []FormAction) []FormAction {
	lastIndex := make(map[string]int, len(actions))
	for i, a := range actions {
		lastIndex[dedupKey(a)] = i
	}

	out := make([]FormAction, 0, len(actions))
	for i, a := range actions {
		if lastIndex[dedupKey(a)] == i {
			out = append(out, a)
		}
	}
	return out
}

func dedupKey(a FormAction) string {
	if a.ActionType == ActionSelectRadio {
		return radioGroupKey(a)
	}
	return fmt.Sprintf("%s|%s|%v", a.ActionType, strings.TrimSpace(a.Selector), a.Value)
}

func radioGroupKey(a FormAction) string {
	label := strings.ToLower(strings.TrimSpace(a.Label))
	if marker := firstSelectorMarker(a.Selector); marker != "" {
		return label + "|" + marker
	}
	return label + "|" + strings.TrimSpace(a.Selector)
}

// firstSelectorMarker extracts the first matching data-* attribute value
// from a CSS selector string, in priority order.
func firstSelectorMarker(selector string) string {
	for i, re := range radioGroupMarkerPatterns {
		if m := re.FindStringSubmatch(selector); m != nil {
			return radioGroupMarkers[i] + ":" + m[1]
		}
	}
	return ""
}
