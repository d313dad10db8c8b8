/*
Package switchboard is a conversational task-routing engine.

A user's request enters a small graph of cooperating nodes. Decision nodes ask a reasoner to
pick one of a closed set of routes; task nodes produce content and may call a tool. Every step
appends to an immutable conversation, which is checkpointed per user thread so the next request
continues where the last one ended.

# Concept

The standard workflow (see package nodes) is a star around a supervisor:

	request_grader -> supervisor | end
	supervisor     -> enhancer | request_grader | researcher | coder
	enhancer       -> supervisor
	researcher     -> validator
	coder          -> validator
	validator      -> supervisor | end

Runs are bounded by a step budget, emit one event per step, and stop at the next node boundary
when cancelled. A thread accepts one run at a time.

# Usage

	g, err := nodes.Workflow(nodes.Deps{Reasoner: reasoner})
	if err != nil {
		log.Fatal(err)
	}

	eng, err := switchboard.New(g, switchboard.WithStore(store))
	if err != nil {
		log.Fatal(err)
	}

	run, err := eng.Stream(ctx, "alice", "Run FastQC on sample_1.fastq")
	if err != nil {
		log.Fatal(err)
	}
	for ev := range run.Events() {
		fmt.Println(ev.Node, "->", ev.Next)
	}
	res, err := run.Wait()
*/
package switchboard
