// Package colorize renders CLI output with syntax highlighting.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// JSON highlights a JSON document for terminal output. On any failure
// the input is returned unchanged.
func JSON(input string) string {
	lexer := lexers.Get("json")
	if lexer == nil {
		return input
	}
	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return input
	}
	iterator, err := lexer.Tokenise(nil, input)
	if err != nil {
		return input
	}
	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return input
	}
	return b.String()
}

// Enabled reports whether stdout wants color.
func Enabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
