package threatmodel

import "fmt"

// InvalidInputError reports a malformed or incomplete request.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func invalidInput(format string, args ...any) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// ContentRejectedError reports text that failed injection screening.
type ContentRejectedError struct {
	Category string
	Reason   string
}

func (e *ContentRejectedError) Error() string {
	return fmt.Sprintf("content rejected (%s): %s", e.Category, e.Reason)
}

// FileRejectedError reports an uploaded file that failed validation.
type FileRejectedError struct {
	Filename string
	Category string
	Reason   string
}

func (e *FileRejectedError) Error() string {
	return fmt.Sprintf("file %q rejected (%s): %s", e.Filename, e.Category, e.Reason)
}
