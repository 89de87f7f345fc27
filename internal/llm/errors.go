package llm

import "errors"

var (
	ErrRateLimited = errors.New("llm: rate limited by provider")
	ErrOverloaded  = errors.New("llm: provider overloaded")
)
