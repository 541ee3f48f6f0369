package agent

import (
	"fmt"
	"strings"
)

// Step is one completed Thought/Action/Observation round. A reflective
// pause has a thought but no action or observation.
type Step struct {
	Thought     string
	Action      string
	Observation string
}

// Scratchpad accumulates the session's reasoning history. It renders
// into the user-turn content the next step sees, so the model can build
// on its own prior work.
type Scratchpad struct {
	steps []Step
}

// Append records a completed step.
func (s *Scratchpad) Append(step Step) {
	s.steps = append(s.steps, step)
}

// Len reports how many steps have completed.
func (s *Scratchpad) Len() int {
	return len(s.steps)
}

// Render formats the history below the user query.
func (s *Scratchpad) Render(userQuery string) string {
	var sb strings.Builder
	sb.WriteString("User query: ")
	sb.WriteString(userQuery)

	for i, step := range s.steps {
		sb.WriteString(fmt.Sprintf("\n\n--- Step %d ---\n", i+1))
		sb.WriteString("Thought: ")
		sb.WriteString(step.Thought)
		if step.Action != "" {
			sb.WriteString("\nAction: ")
			sb.WriteString(step.Action)
		}
		if step.Observation != "" {
			sb.WriteString("\nObservation: ")
			sb.WriteString(step.Observation)
		}
	}
	return sb.String()
}
