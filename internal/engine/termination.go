package engine

// TerminationReason describes how a command run ended.
type TerminationReason string

const (
	TerminationNormal      TerminationReason = "normal"
	TerminationUserStopped TerminationReason = "user_stopped"
	TerminationTimeout     TerminationReason = "timeout"
	TerminationError       TerminationReason = "error"
)

// TerminationContextPrefix returns the context string prepended to command
// output before it is fed back to the model. A normal exit needs no framing;
// every other reason gets instructions that keep the model from thrashing,
// separated from the output by a blank line.
func TerminationContextPrefix(reason TerminationReason) string {
	switch reason {
	case TerminationUserStopped:
		return "The user manually stopped this command while it was running. " +
			"Do not retry it automatically. Ask the user how they want to proceed.\n\n"
	case TerminationTimeout:
		return "This command was terminated because it exceeded its time limit. " +
			"Consider breaking the work into smaller steps, requesting a longer timeout, " +
			"or asking the user to run it manually.\n\n"
	case TerminationError:
		return "This command could not be spawned. Check that the executable exists " +
			"and is accessible before trying again.\n\n"
	default:
		return ""
	}
}
