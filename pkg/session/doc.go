/*
Package session implements thread management and persistence orchestration.

The Manager sits between the engine and a ports.CheckpointStore. It serializes load and
save per thread, turns a missing thread into an empty conversation, and hands out the
exclusive run lease that keeps a thread to one active run at a time, across replicas when
a distributed locker is configured.
*/
package session
