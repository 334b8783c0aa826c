package browse

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrNotTerminal is returned by RunTerminal when stdin is not a terminal.
var ErrNotTerminal = errors.New("browse needs an interactive terminal")

// RunTerminal puts f into raw mode, sizes frames to the terminal and runs b
// until the user quits. The terminal is restored on return.
func RunTerminal(ctx context.Context, b *Browser, f *os.File) error {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}
	if w, _, err := term.GetSize(fd); err == nil {
		b.SetWidth(w)
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	// Hide the cursor while browsing and show it again on the way out.
	fmt.Fprint(b.out, "\x1b[?25l")
	defer fmt.Fprint(b.out, "\x1b[?25h"+lineBreak)

	return b.Run(ctx, f)
}
