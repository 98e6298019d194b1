package domain

// QuizQuestion is one multiple-choice question drawn from the bank.
// Instances are immutable after load; sessions reference them, never copy.
type QuizQuestion struct {
	// PromptText is the question body followed by the lettered alternatives,
	// rendered once at load time.
	PromptText string
	// Alternatives maps a lowercase letter to its option text.
	Alternatives map[string]string
	// Letters holds the alternative letters in presentation order.
	Letters []string
	// CorrectLetter is a single lowercase letter.
	CorrectLetter string
}

// ValidLetter reports whether s (already lowercased) names one of this
// question's alternatives.
func (q *QuizQuestion) ValidLetter(s string) bool {
	_, ok := q.Alternatives[s]
	return ok
}
