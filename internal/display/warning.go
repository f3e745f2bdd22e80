package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Warning is a user-facing warning block: a title plus optional detail,
// affected files, and a suggested action.
type Warning struct {
	Title      string
	Message    string
	Files      []string
	Suggestion string
}

// Display writes the warning to out in yellow. Color honors the global
// color.NoColor setting, so non-terminal output stays plain.
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	fmt.Fprintf(&b, "Warning: %s\n", w.Title)

	if w.Message != "" {
		fmt.Fprintf(&b, "    %s\n", w.Message)
	}

	if len(w.Files) > 0 {
		label := "Affected files:"
		if len(w.Files) == 1 {
			label = "Affected file:"
		}
		fmt.Fprintf(&b, "    %s\n", label)
		for i, file := range w.Files {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, file)
		}
	}

	if w.Suggestion != "" {
		fmt.Fprintf(&b, "    Suggestion:\n    %s\n", w.Suggestion)
	}

	fmt.Fprint(out, color.YellowString("%s", b.String()))
}
