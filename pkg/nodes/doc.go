/*
Package nodes implements the decision and task nodes of the routing workflow and wires
them into the standard star-shaped graph.

Decision nodes (request grader, supervisor, validator) offer the reasoner a closed set of
choices and translate the answer into a transition. An answer outside the set is a
domain.ContractViolation; it is never routed. Task nodes (enhancer, researcher, coder)
produce content and always hand control to one fixed successor.

	request_grader --in_scope--> supervisor --> enhancer   --> supervisor
	      |                          |------> researcher --> validator --supervisor--> supervisor
	 out_of_scope                    |------> coder      --> validator --finish-----> End
	      v                          '------> request_grader
	     End
*/
package nodes
