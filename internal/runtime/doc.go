/*
Package runtime implements the executor that walks a graph for a single run.

Each run gets one worker goroutine. The worker invokes nodes strictly in sequence,
appends their messages to the conversation, and reports progress over a channel of
domain.Event values that is closed when the run ends.

Lifecycle of a run:

	Ready -> Running(entry) -> Running(next) ... -> Terminal
	                       \-> Failed (node error, routing error, step limit, cancellation)

Cancellation is cooperative. The run context is checked at every node boundary and is
passed down to collaborators so in-flight calls can abort early.
*/
package runtime
