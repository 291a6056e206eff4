package formpipeline

// ModelProfile names the model identifier used for each pipeline phase.
type ModelProfile struct {
	ParserModel string
	SolverModel string
	ActionModel string
}

// ModelClasses maps the declarative "small"/"large" model classes to
// concrete provider model identifiers. A single constant table, to avoid
// scattering model choice through code.
var ModelClasses = struct {
	Small string
	Large string
}{
	Small: "gpt-4o-mini",
	Large: "gpt-4o",
}

// QualityProfiles is the per-quality (parser, solver, action) model table.
var QualityProfiles = map[Quality]ModelProfile{
	QualityFast:     {ParserModel: ModelClasses.Small, SolverModel: ModelClasses.Small, ActionModel: ModelClasses.Small},
	QualityFastPro:  {ParserModel: ModelClasses.Large, SolverModel: ModelClasses.Small, ActionModel: ModelClasses.Large},
	QualityExact:    {ParserModel: ModelClasses.Small, SolverModel: ModelClasses.Large, ActionModel: ModelClasses.Small},
	QualityExactPro: {ParserModel: ModelClasses.Large, SolverModel: ModelClasses.Large, ActionModel: ModelClasses.Large},
}

const DefaultQuality = QualityFast

// ProfileFor resolves a quality string to its model profile, falling back to
// the default when the value is unrecognized (the HTTP boundary is expected
// to reject unknown values before the core ever sees them).
func ProfileFor(q Quality) ModelProfile {
	if profile, ok := QualityProfiles[q]; ok {
		return profile
	}
	return QualityProfiles[DefaultQuality]
}

// ValidQuality reports whether q is one of the four allowed quality values.
func ValidQuality(q Quality) bool {
	_, ok := QualityProfiles[q]
	return ok
}
