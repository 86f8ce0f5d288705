package ledger

// Result is the uniform shape every mutating operation hands to the
// presentation layer. Errors never escape as raw values.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

func Fail(err error) Result {
	return Result{Error: Message(err), Kind: Classify(err)}
}

// ResultOf builds a Result from a (value, error) pair.
func ResultOf[T any](data T, err error) Result {
	if err != nil {
		return Fail(err)
	}
	return Ok(data)
}
