package resize

import "golang.org/x/term"

// WindowSize reports the size of the tty on fd in cells.
func WindowSize(fd int) (cols, rows int, err error) {
	return term.GetSize(fd)
}

func reportSize(fd int, fn func(cols, rows int)) {
	cols, rows, err := term.GetSize(fd)
	if err != nil || cols <= 0 || rows <= 0 {
		return
	}
	fn(cols, rows)
}
