package listview

// FetchError wraps a failure reported by the fetch collaborator. Its message
// is the collaborator's message verbatim, which is also what lands in
// State.Err.
type FetchError struct {
	Params Params
	Err    error
}

func (e *FetchError) Error() string {
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CreateError wraps a failure reported by the create collaborator. It is
// returned from Create and never stored in the list state.
type CreateError struct {
	Err error
}

func (e *CreateError) Error() string {
	return e.Err.Error()
}

func (e *CreateError) Unwrap() error {
	return e.Err
}
