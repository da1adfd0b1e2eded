package testutil

// ScriptedConfirmer answers confirmation prompts from a fixed script and
// records what it was asked.
type ScriptedConfirmer struct {
	// Answers are consumed in order; once exhausted, Default is returned.
	Answers []bool

	// Default is the answer after the script runs out.
	Default bool

	// Asked records every prompt message, in order.
	Asked []string
}

// Confirm implements types.Confirmer.
func (c *ScriptedConfirmer) Confirm(message string) bool {
	c.Asked = append(c.Asked, message)
	if len(c.Answers) == 0 {
		return c.Default
	}
	answer := c.Answers[0]
	c.Answers = c.Answers[1:]
	return answer
}
