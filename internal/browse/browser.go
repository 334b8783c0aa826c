package browse

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

const (
	keyCtrlC     = 3
	keyBackspace = 8
	keyEnter     = '\r'
	keyNewline   = '\n'
	keyEscape    = 27
	keyDelete    = 127
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\x1b[H\x1b[2J"

// Browser drives a list view from single key presses and redraws on every
// controller change.
type Browser struct {
	entity model.Entity
	view   *listview.View[model.Record]
	out    io.Writer

	mu        sync.Mutex
	snap      listview.Snapshot[model.Record]
	cursor    int
	search    string
	searching bool
	detail    model.Record
	status    string
	width     int
}

// New creates a Browser over view. Frames are written to out.
func New(e model.Entity, view *listview.View[model.Record], out io.Writer) *Browser {
	return &Browser{
		entity: e,
		view:   view,
		out:    out,
		snap:   view.Controller().Snapshot(),
	}
}

// SetWidth sets the terminal width frames are clipped to.
func (b *Browser) SetWidth(w int) {
	b.mu.Lock()
	b.width = w
	b.mu.Unlock()
}

// Frame returns what the screen shows right now.
func (b *Browser) Frame() Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frameLocked()
}

func (b *Browser) frameLocked() Frame {
	return Frame{
		Entity:    b.entity,
		Snapshot:  b.snap,
		Cursor:    b.cursor,
		Search:    b.search,
		Searching: b.searching,
		Detail:    b.detail,
		Width:     b.width,
		Status:    b.status,
	}
}

// Run starts the controller, reads keys from in until q, end of input or
// ctx is done, and redraws after every key and every list change.
func (b *Browser) Run(ctx context.Context, in io.Reader) error {
	ctl := b.view.Controller()
	unsubscribe := ctl.Subscribe(b.onSnapshot)
	defer unsubscribe()
	ctl.Start()

	keys := make(chan byte)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		r := bufio.NewReader(in)
		for {
			c, err := r.ReadByte()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case keys <- c:
			case <-stop:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case c := <-keys:
			if b.HandleKey(c) {
				return nil
			}
		}
	}
}

func (b *Browser) onSnapshot(snap listview.Snapshot[model.Record]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = snap
	if n := len(snap.State.Items); b.cursor >= n {
		b.cursor = max(n-1, 0)
	}
	b.drawLocked()
}

func (b *Browser) drawLocked() {
	_, _ = io.WriteString(b.out, clearScreen+Render(b.frameLocked()))
}

// HandleKey applies one key press and redraws. It reports whether the
// browser should quit.
func (b *Browser) HandleKey(c byte) (quit bool) {
	b.mu.Lock()
	defer func() {
		if !quit {
			b.drawLocked()
		}
		b.mu.Unlock()
	}()

	if c == keyCtrlC {
		return true
	}
	if b.searching {
		b.searchKeyLocked(c)
		return false
	}
	if b.detail != nil {
		switch c {
		case 'q':
			return true
		case keyEscape, keyEnter, keyNewline:
			b.detail = nil
		}
		return false
	}

	b.status = ""
	switch {
	case c == 'q':
		return true
	case c == 'n':
		b.view.NextPage()
		b.cursor = 0
	case c == 'p':
		b.view.PrevPage()
		b.cursor = 0
	case c == 'j':
		if b.cursor < len(b.snap.State.Items)-1 {
			b.cursor++
		}
	case c == 'k':
		if b.cursor > 0 {
			b.cursor--
		}
	case c == 'r':
		b.view.Controller().Refresh()
	case c == '/':
		b.searching = true
	case c == keyEnter || c == keyNewline:
		if rec, ok := b.view.SelectRow(b.cursor); ok {
			b.detail = rec
		}
	case c >= '1' && c <= '9':
		i := int(c - '1')
		if i >= len(b.entity.Columns) {
			b.status = "no column " + string(c)
			break
		}
		b.view.ClickSort(b.entity.Columns[i])
		b.cursor = 0
	}
	return false
}

func (b *Browser) searchKeyLocked(c byte) {
	switch {
	case c == keyEnter || c == keyNewline:
		b.searching = false
		b.view.FlushSearch()
		b.cursor = 0
		return
	case c == keyEscape:
		b.searching = false
		return
	case c == keyBackspace || c == keyDelete:
		if b.search == "" {
			return
		}
		r := []rune(b.search)
		b.search = string(r[:len(r)-1])
	case c >= 0x20 && c < 0x7f:
		b.search += string(rune(c))
	default:
		return
	}
	b.view.Search(b.search)
}
