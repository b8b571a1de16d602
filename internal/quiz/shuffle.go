package quiz

import (
	"math/rand"

	"anki-quiz-service/internal/domain"
)

// BuildBinding produces the shuffled presentation of a question. The option
// texts, correctness flags, and original indices move through one shared
// permutation, so Correctness[k] always belongs to Options[k].
//
// A binding is built at most once per question per session and then reused for
// every render; re-shuffling mid-session would desynchronize recorded answers
// from displayed positions.
func BuildBinding(q domain.Question, rnd *rand.Rand) *domain.DisplayBinding {
	n := len(q.Options)
	binding := &domain.DisplayBinding{
		Options:       make([]string, n),
		Correctness:   make([]bool, n),
		OriginalIndex: make([]int, n),
	}
	for k, original := range rnd.Perm(n) {
		binding.Options[k] = q.Options[original]
		binding.Correctness[k] = q.Correctness[original]
		binding.OriginalIndex[k] = original
	}
	return binding
}
