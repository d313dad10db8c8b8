package domain

// End is the terminal sentinel. A Command whose Next is End stops the run.
const End = "__end__"

// Command is what a node returns after it runs.
// It carries the messages to append and the name of the node to run next.
// There is no way to express removal: history only grows.
type Command struct {
	Update []Message
	Next   string
}

// Goto builds a Command that appends msgs and routes to next.
func Goto(next string, msgs ...Message) Command {
	return Command{Update: msgs, Next: next}
}

// Finish builds a Command that appends msgs and terminates the run.
func Finish(msgs ...Message) Command {
	return Command{Update: msgs, Next: End}
}

// Terminal reports whether the command ends the run.
func (c Command) Terminal() bool { return c.Next == End }
