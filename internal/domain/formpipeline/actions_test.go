package formpipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostProcessActionsNormalizesAliases(t *testing.T) {
	raw := []RawAction{
		{ActionType: "setText", Selector: "#name", Value: "Alice"},
		{ActionType: "unknownType", Selector: "#other", Value: "x"},
		{ActionType: "click", Selector: "#submit"},
	}

	out := PostProcessActions(raw)
	require.Len(t, out, 3)
	require.Equal(t, ActionFillText, out[0].ActionType)
	require.Equal(t, ActionFillText, out[1].ActionType)
	require.Equal(t, ActionClick, out[2].ActionType)
	require.Equal(t, []int{0, 1, 2}, []int{out[0].OrderIndex, out[1].OrderIndex, out[2].OrderIndex})
}

func TestPostProcessActionsDropsNullValueForDroppableTypes(t *testing.T) {
	raw := []RawAction{
		{ActionType: "fillText", Selector: "#a", Value: nil},
		{ActionType: "selectDropdown", Selector: "#b", Value: nil},
		{ActionType: "selectCheckbox", Selector: "#c", Value: nil},
		{ActionType: "click", Selector: "#d", Value: nil},
	}

	out := PostProcessActions(raw)
	require.Len(t, out, 1)
	require.Equal(t, ActionClick, out[0].ActionType)
}

func TestPostProcessActionsCollapsesExactDuplicates(t *testing.T) {
	raw := []RawAction{
		{ActionType: "fillText", Selector: "#name", Value: "Alice"},
		{ActionType: "fillText", Selector: "#name", Value: "Alice"},
	}

	out := PostProcessActions(raw)
	require.Len(t, out, 1)
	require.Equal(t, "Alice", out[0].Value)
}

func TestPostProcessActionsCollapsesRadioGroupToFinalSelection(t *testing.T) {
	raw := []RawAction{
		{ActionType: "selectRadio", Selector: `input[data-question-id="q1"][value="a"]`, Label: "Gender", Value: "Male"},
		{ActionType: "selectRadio", Selector: `input[data-question-id="q1"][value="b"]`, Label: "Gender", Value: "Female"},
	}

	out := PostProcessActions(raw)
	require.Len(t, out, 1)
	require.Equal(t, "Female", out[0].Value)
	require.Equal(t, `input[data-question-id="q1"][value="b"]`, out[0].Selector)
}

func TestPostProcessActionsKeepsDistinctRadioGroups(t *testing.T) {
	raw := []RawAction{
		{ActionType: "selectRadio", Selector: `input[data-question-id="q1"]`, Label: "Gender", Value: "Male"},
		{ActionType: "selectRadio", Selector: `input[data-question-id="q2"]`, Label: "Newsletter", Value: "Yes"},
	}

	out := PostProcessActions(raw)
	require.Len(t, out, 2)
}
