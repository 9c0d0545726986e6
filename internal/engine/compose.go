package engine

import (
	"fmt"
	"strconv"
)

// ExpCapture is the designated capture name a rule's textual constraint
// binds to.
const ExpCapture = "@exp"

// Compose builds the final pattern text for a rule: the base pattern,
// optionally wrapped with a #match? constraint restricting the @exp capture
// to nodes whose text matches the regular expression. The regex is quoted so
// it cannot escape into the pattern language. Pattern syntax is not checked
// here; malformed patterns surface at compile time.
func Compose(query, regex string) string {
	if regex == "" {
		return query
	}
	return fmt.Sprintf("(%s\n  (#match? %s %s))", query, ExpCapture, strconv.Quote(regex))
}
