package term

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// EncodeEventToBytes converts key events to terminal byte sequences using
// xterm conventions. appCursor selects SS3 arrows (DECCKM).
func EncodeEventToBytes(ev *tcell.EventKey, appCursor bool) []byte {
	if ev == nil {
		return nil
	}
	mods := ev.Modifiers()
	alt := mods&tcell.ModAlt != 0

	if ev.Key() == tcell.KeyRune {
		r := ev.Rune()
		if mods&tcell.ModCtrl != 0 {
			if c, ok := ctrlRuneCode(r); ok {
				return withAlt(alt, []byte{c})
			}
		}
		return withAlt(alt, []byte(string(r)))
	}

	switch ev.Key() {
	case tcell.KeyEnter:
		return withAlt(alt, []byte{'\r'})
	case tcell.KeyTab:
		return withAlt(alt, []byte{'\t'})
	case tcell.KeyBacktab:
		return []byte("\x1b[Z")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return withAlt(alt, []byte{0x7f})
	case tcell.KeyEsc:
		return []byte{0x1b}
	case tcell.KeyUp:
		return cursorKey('A', mods, appCursor)
	case tcell.KeyDown:
		return cursorKey('B', mods, appCursor)
	case tcell.KeyRight:
		return cursorKey('C', mods, appCursor)
	case tcell.KeyLeft:
		return cursorKey('D', mods, appCursor)
	case tcell.KeyHome:
		return cursorKey('H', mods, appCursor)
	case tcell.KeyEnd:
		return cursorKey('F', mods, appCursor)
	case tcell.KeyPgUp:
		return tildeKey(5, mods)
	case tcell.KeyPgDn:
		return tildeKey(6, mods)
	case tcell.KeyDelete:
		return tildeKey(3, mods)
	case tcell.KeyInsert:
		return tildeKey(2, mods)
	}

	if c, ok := ctrlCode(ev.Key()); ok {
		return withAlt(alt, []byte{c})
	}
	return functionKey(ev.Key(), mods)
}

func withAlt(alt bool, b []byte) []byte {
	if !alt {
		return b
	}
	return append([]byte{0x1b}, b...)
}

func cursorKey(final byte, mods tcell.ModMask, appCursor bool) []byte {
	if mod := xtermModifier(mods); mod > 1 {
		return []byte(fmt.Sprintf("\x1b[1;%d%c", mod, final))
	}
	if appCursor {
		return []byte{0x1b, 'O', final}
	}
	return []byte{0x1b, '[', final}
}

func tildeKey(n int, mods tcell.ModMask) []byte {
	if mod := xtermModifier(mods); mod > 1 {
		return []byte(fmt.Sprintf("\x1b[%d;%d~", n, mod))
	}
	return []byte(fmt.Sprintf("\x1b[%d~", n))
}

func xtermModifier(mods tcell.ModMask) int {
	mod := 1
	if mods&tcell.ModShift != 0 {
		mod += 1
	}
	if mods&tcell.ModAlt != 0 {
		mod += 2
	}
	if mods&tcell.ModCtrl != 0 {
		mod += 4
	}
	return mod
}

func ctrlCode(k tcell.Key) (byte, bool) {
	switch {
	case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ:
		return byte(k-tcell.KeyCtrlA) + 0x01, true
	case k == tcell.KeyCtrlSpace:
		return 0x00, true
	case k == tcell.KeyCtrlBackslash:
		return 0x1c, true
	case k == tcell.KeyCtrlRightSq:
		return 0x1d, true
	case k == tcell.KeyCtrlCarat:
		return 0x1e, true
	case k == tcell.KeyCtrlUnderscore:
		return 0x1f, true
	}
	return 0, false
}

func ctrlRuneCode(r rune) (byte, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return byte(r-'a') + 1, true
	case r >= 'A' && r <= 'Z':
		return byte(r-'A') + 1, true
	}
	switch r {
	case ' ', '@':
		return 0x00, true
	case '\\':
		return 0x1c, true
	case ']':
		return 0x1d, true
	case '^':
		return 0x1e, true
	case '_':
		return 0x1f, true
	}
	return 0, false
}

func functionKey(k tcell.Key, mods tcell.ModMask) []byte {
	switch k {
	case tcell.KeyF1, tcell.KeyF2, tcell.KeyF3, tcell.KeyF4:
		final := byte('P' + (k - tcell.KeyF1))
		if mod := xtermModifier(mods); mod > 1 {
			return []byte(fmt.Sprintf("\x1b[1;%d%c", mod, final))
		}
		return []byte{0x1b, 'O', final}
	}
	codes := map[tcell.Key]int{
		tcell.KeyF5:  15,
		tcell.KeyF6:  17,
		tcell.KeyF7:  18,
		tcell.KeyF8:  19,
		tcell.KeyF9:  20,
		tcell.KeyF10: 21,
		tcell.KeyF11: 23,
		tcell.KeyF12: 24,
	}
	if n, ok := codes[k]; ok {
		return tildeKey(n, mods)
	}
	return nil
}
