/*
Package ports defines the driven ports (interfaces) for the switchboard engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, reasoning backends and tools.

# Key Interfaces

  - CheckpointStore: Persists and loads the Conversation of a thread.
  - DistributedLocker: Provides distributed locking for coordinating runs across replicas.
  - Reasoner: The reasoning backend. Produces routing decisions and free text.
  - Tool: An external capability a task node can invoke (search, code execution).
  - EventSink: Receives a copy of every event a run emits.
*/
package ports
