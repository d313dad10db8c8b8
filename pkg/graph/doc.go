/*
Package graph provides the node abstraction and a builder for the routing graph the executor walks.

A Graph is a set of named nodes plus an entry point. Each node declares up front every
successor it may hand control to, so an invalid topology is rejected at Build time rather
than surfacing halfway through a run.

Example usage:

	g, err := graph.NewBuilder().
		Add(grader, supervisor, researcher, coder, enhancer, validator).
		Entry("request_grader").
		Build()

Nodes that stream partial output call EmitFragment with the context they were invoked
with; the executor installs a sink on that context with WithFragmentSink.
*/
package graph
