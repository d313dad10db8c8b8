/*
Package domain contains the core domain models of the switchboard engine.

It defines the conversation that every node reads and extends, the commands nodes
return to steer the executor, and the events a run emits. This package is kept pure
and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Message: A single authored entry (user request, node output, routing justification).
  - Conversation: The append-only, immutable ordered sequence of Messages for a thread.
  - Command: What a node returns. Messages to append plus the name of the next node (or End).
  - Event: A unit of the event stream (a completed step, a fragment, a warning).
*/
package domain
