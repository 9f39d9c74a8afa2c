package locator

import "fmt"

// SyntaxError reports a locator string that does not follow the grammar.
type SyntaxError struct {
	Raw    string
	Detail string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed locator %q: %s", e.Raw, e.Detail)
}
