package theme

import (
	"fmt"
	"io"
)

// Banner returns the CLI banner.
func Banner() string {
	const magenta = "\033[35m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	art := "" +
		magenta + "   ┌─────────────┐\n" + reset +
		magenta + "   │  ◯      ▪   │" + reset + "   " + yellow + "igharvest" + reset + "\n" +
		magenta + "   │             │\n" + reset +
		magenta + "   └─────────────┘\n" + reset +
		"   learning-activity harvester for Instagram\n"
	return art
}

// PrintBanner writes the banner to w.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Banner())
}
