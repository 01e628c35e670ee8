package errors

// EngineError is a specialized error type for the command/transaction layer.
// Every EngineError is meant to cross the wire as a RESP error reply, so it
// carries just enough context (command name, key, database index) to build a
// useful message without leaking internal state.
type EngineError struct {
	*baseError
	command string // Name of the command being executed when the error occurred.
	key     string // Key involved, if any.
	dbIdx   int    // Active database index of the session, if relevant.
}

// NewEngineError creates a new engine-specific error.
func NewEngineError(err error, code ErrorCode, msg string) *EngineError {
	return &EngineError{baseError: NewBaseError(err, code, msg)}
}

// Override base error methods to return *EngineError instead of *baseError.

func (ee *EngineError) WithMessage(msg string) *EngineError {
	ee.baseError.WithMessage(msg)
	return ee
}

func (ee *EngineError) WithCode(code ErrorCode) *EngineError {
	ee.baseError.WithCode(code)
	return ee
}

func (ee *EngineError) WithDetail(key string, value any) *EngineError {
	ee.baseError.WithDetail(key, value)
	return ee
}

// WithCommand records which command was being executed.
func (ee *EngineError) WithCommand(command string) *EngineError {
	ee.command = command
	return ee
}

// WithKey records the key involved in the failing operation.
func (ee *EngineError) WithKey(key string) *EngineError {
	ee.key = key
	return ee
}

// WithDBIndex records the session's active database index.
func (ee *EngineError) WithDBIndex(idx int) *EngineError {
	ee.dbIdx = idx
	return ee
}

func (ee *EngineError) Command() string { return ee.command }
func (ee *EngineError) Key() string     { return ee.key }
func (ee *EngineError) DBIndex() int    { return ee.dbIdx }

// Helper constructors, one per taxonomy entry. Each mirrors the client-facing
// condition a session can trigger from the wire protocol.

func NewSyntaxError(detail string) *EngineError {
	return NewEngineError(nil, ErrorCodeSyntax, "syntax error").WithDetail("detail", detail)
}

func NewArgNumbersError(command string) *EngineError {
	return NewEngineError(nil, ErrorCodeArgNumbers, "wrong number of arguments").
		WithCommand(command)
}

func NewCommandNotFoundError(command string) *EngineError {
	return NewEngineError(nil, ErrorCodeCommandNotFound, "unknown command").
		WithCommand(command)
}

func NewOptionExclusiveError(command, optionA, optionB string) *EngineError {
	return NewEngineError(nil, ErrorCodeOptionExclusive, "options are mutually exclusive").
		WithCommand(command).
		WithDetail("optionA", optionA).
		WithDetail("optionB", optionB)
}

func NewInvalidTxCmdError(command string) *EngineError {
	return NewEngineError(nil, ErrorCodeInvalidTxCmd, "command not allowed in this context").
		WithCommand(command)
}

func NewAlreadyInTxError() *EngineError {
	return NewEngineError(nil, ErrorCodeAlreadyInTx, "MULTI calls can not be nested")
}

func NewNotInTxError(command string) *EngineError {
	return NewEngineError(nil, ErrorCodeNotInTx, "command without MULTI").
		WithCommand(command)
}

func NewKeyNotFoundEngineError(key string) *EngineError {
	return NewEngineError(nil, ErrorCodeKeyNotFound, "key not found").WithKey(key)
}

func NewKeyAlreadyExistsError(key string) *EngineError {
	return NewEngineError(nil, ErrorCodeKeyAlreadyExists, "key already exists").WithKey(key)
}

func NewDBIdxOutOfRangeError(idx, max int) *EngineError {
	return NewEngineError(nil, ErrorCodeDBIdxOutOfRange, "database index out of range").
		WithDBIndex(idx).
		WithDetail("max", max)
}

func NewMemoryOutError() *EngineError {
	return NewEngineError(nil, ErrorCodeMemoryOut, "server is out of memory and in read-only mode")
}

func NewWatchedKeyModifiedError(key string) *EngineError {
	return NewEngineError(nil, ErrorCodeWatchedKeyModified, "watched key was modified").WithKey(key)
}

func NewTxErrorOf(cause error) *EngineError {
	return NewEngineError(cause, ErrorCodeTxError, "transaction discarded due to command error")
}
