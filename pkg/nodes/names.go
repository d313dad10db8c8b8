package nodes

// Node names of the standard workflow.
const (
	RequestGrader = "request_grader"
	Supervisor    = "supervisor"
	Enhancer      = "enhancer"
	Researcher    = "researcher"
	Coder         = "coder"
	Validator     = "validator"
)

// SupervisorChoice is the closed set of specialists the supervisor can dispatch to.
type SupervisorChoice string

const (
	ChooseEnhancer      SupervisorChoice = Enhancer
	ChooseRequestGrader SupervisorChoice = RequestGrader
	ChooseResearcher    SupervisorChoice = Researcher
	ChooseCoder         SupervisorChoice = Coder
)

// GraderChoice is the verdict of the request grader.
type GraderChoice string

const (
	InScope    GraderChoice = "in_scope"
	OutOfScope GraderChoice = "out_of_scope"
)

// ValidatorChoice is the verdict of the validator.
type ValidatorChoice string

const (
	Resume ValidatorChoice = "supervisor"
	Finish ValidatorChoice = "finish"
)
