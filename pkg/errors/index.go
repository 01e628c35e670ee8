package errors

// IndexError reports a failure in the in-memory key index or its relation
// to the segment pool backing it.
type IndexError struct {
	*baseError
	key       string
	segmentID uint64
	operation string
}

// NewIndexError creates a new index-specific error with the provided context.
func NewIndexError(err error, code ErrorCode, msg string) *IndexError {
	return &IndexError{
		baseError: NewBaseError(err, code, msg),
	}
}

// Override base error methods to return *IndexError instead of *baseError.

func (ie *IndexError) WithMessage(msg string) *IndexError {
	ie.baseError.WithMessage(msg)
	return ie
}

func (ie *IndexError) WithCode(code ErrorCode) *IndexError {
	ie.baseError.WithCode(code)
	return ie
}

func (ie *IndexError) WithDetail(key string, value any) *IndexError {
	ie.baseError.WithDetail(key, value)
	return ie
}

// WithKey records which key was being processed when the error occurred.
func (ie *IndexError) WithKey(key string) *IndexError {
	ie.key = key
	return ie
}

// WithSegmentID records which segment a locator pointed at.
func (ie *IndexError) WithSegmentID(segmentID uint64) *IndexError {
	ie.segmentID = segmentID
	return ie
}

// WithOperation records which index operation was in progress.
func (ie *IndexError) WithOperation(operation string) *IndexError {
	ie.operation = operation
	return ie
}

func (ie *IndexError) Key() string       { return ie.key }
func (ie *IndexError) SegmentID() uint64 { return ie.segmentID }
func (ie *IndexError) Operation() string { return ie.operation }

// NewSegmentIDError reports that a locator named a segment the pool no
// longer has open - a dangling index entry left behind by a merge or
// recovery bug rather than a condition a client request can trigger.
func NewSegmentIDError(segmentID uint64, key string) *IndexError {
	return NewIndexError(nil, ErrorCodeIndexInvalidSegmentID, "segment ID not found in pool").
		WithSegmentID(segmentID).
		WithKey(key).
		WithOperation("Get")
}
