// Package peripheral talks to the LED co-processor over a serial line.
//
// The protocol is newline terminated ASCII, one command per line. The
// controller side only ever writes; the co-processor side mirrors the
// commands onto its own strip.
package peripheral

import (
	"fmt"
	"strings"
)

type Command int

const (
	CmdIdle Command = iota
	CmdCelebrate
	CmdOff
)

var commandTokens = map[Command]string{
	CmdIdle:      "idle",
	CmdCelebrate: "celebrate",
	CmdOff:       "off",
}

func (c Command) String() string {
	if tok, ok := commandTokens[c]; ok {
		return tok
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Line is the wire form of c.
func (c Command) Line() []byte {
	return []byte(c.String() + "\n")
}

// ParseCommand maps a received line to a command. Surrounding whitespace is
// ignored.
func ParseCommand(line string) (Command, error) {
	tok := strings.TrimSpace(line)
	for cmd, t := range commandTokens {
		if t == tok {
			return cmd, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", tok)
}
