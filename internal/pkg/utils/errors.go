package utils

// ErrIssuance indicates the wallet agent rejected or failed an issuance call.
// Detail keeps the agent response body for the row error record
type ErrIssuance struct {
	Detail string
	err    error
}

// NewErrIssuance creates new error
func NewErrIssuance(err error, detail string) error {
	return &ErrIssuance{err: err, Detail: detail}
}

func (e *ErrIssuance) Error() string {
	return "issuance error: " + e.err.Error()
}

func (e *ErrIssuance) Unwrap() error {
	return e.err
}
