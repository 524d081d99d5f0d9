package handlers

// DomainMetrics records domain outcomes observed by the handlers.
type DomainMetrics interface {
	RoleAssignment(operation, outcome string)
	Registration(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RoleAssignment(string, string) {}
func (noopMetrics) Registration(string)           {}
