package app

// Operation tracks a CLI run that may mutate the database.
// Operations are created in memory with ID=0. Only mutating commands
// persist them, which assigns the auto-increment ID from the database.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation, parameters string) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as unsuccessful.
func (op *Operation) Fail() {
	op.Status = "error"
}
