package console

import "github.com/fatih/color"

// Available ANSI colors. They honour color.NoColor (NO_COLOR, non-tty output).
var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
	Bold   = color.New(color.Bold).SprintFunc()
)
