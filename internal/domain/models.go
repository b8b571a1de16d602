package domain

// Field names present on an imported card record. Slots Q_1..Q_6 hold the
// answer options; empty slots are legal and skipped at normalization.
const (
	FieldPrompt      = "Question"
	FieldAnswerSpec  = "Answers"
	FieldExplanation = "Extra_1"
	FieldSources     = "Sources"
	FieldTitle       = "Title"
	FieldTags        = "Tags"
)

// MaxOptionSlots is the number of option slots a card can carry.
const MaxOptionSlots = 6

// RawCardRecord is one imported card as produced by the deck importer: a flat
// field-name to value mapping. The quiz core only reads from it.
type RawCardRecord map[string]string

// Question is the canonical, validated form of a card. Correctness is aligned
// index-for-index with Options in original slot order, before any shuffling.
type Question struct {
	Prompt      string            `json:"prompt"`
	Explanation string            `json:"explanation,omitempty"`
	Options     []string          `json:"options"`
	Correctness []bool            `json:"correctness"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// DisplayBinding is the session-scoped shuffled presentation of a question.
// Options, Correctness, and OriginalIndex share one permutation: Options[k]
// started at slot OriginalIndex[k] and is correct iff Correctness[k].
type DisplayBinding struct {
	Options       []string `json:"options"`
	Correctness   []bool   `json:"correctness"`
	OriginalIndex []int    `json:"originalIndex"`
}

// AnswerRecord is the user's selection for one question, one entry per display
// option. A nil record means the question has not been attempted.
type AnswerRecord []bool

// QuestionKind selects the input widget: radio for single, checkboxes for multiple.
type QuestionKind string

const (
	KindSingle   QuestionKind = "single"
	KindMultiple QuestionKind = "multiple"
)

// QuestionType is derived from a question's correctness vector, never stored.
type QuestionType struct {
	Kind          QuestionKind `json:"kind"`
	RequiredCount int          `json:"requiredCount"`
}

// Type reports whether the question expects one or several selections.
func (q Question) Type() QuestionType {
	required := 0
	for _, correct := range q.Correctness {
		if correct {
			required++
		}
	}
	kind := KindMultiple
	if required == 1 {
		kind = KindSingle
	}
	return QuestionType{Kind: kind, RequiredCount: required}
}
