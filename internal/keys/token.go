package keys

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	namedPrefix = "key:"
	vkPrefix    = "vk:"
)

// Token is a canonical, totally ordered key identifier.
// The zero value is None.
type Token string

// None is the token for events that cannot be identified reliably.
const None Token = ""

// IsNone reports whether t is the None token.
func (t Token) IsNone() bool { return t == None }

func (t Token) String() string {
	if t == None {
		return "<none>"
	}
	return string(t)
}

// IsModifier reports whether t names a modifier key (either side).
func (t Token) IsModifier() bool {
	name, ok := strings.CutPrefix(string(t), namedPrefix)
	if !ok {
		return false
	}
	_, ok = modifierNames[name]
	return ok
}

// Label returns a short human-readable name for display, e.g. "ctrl",
// "A", "Numpad 5".
func (t Token) Label() string {
	if name, ok := strings.CutPrefix(string(t), namedPrefix); ok {
		if folded, ok := sideFolds[name]; ok {
			return folded
		}
		return name
	}
	if code, ok := strings.CutPrefix(string(t), vkPrefix); ok {
		vk, err := strconv.Atoi(code)
		if err != nil {
			return string(t)
		}
		if label, ok := vkLabels[vk]; ok {
			return label
		}
		if (vk >= 'A' && vk <= 'Z') || (vk >= '0' && vk <= '9') {
			return string(rune(vk))
		}
		return fmt.Sprintf("<%d>", vk)
	}
	return string(t)
}

// RawKey is the payload of one platform key event. Name is set for keys the
// platform reports by name (modifiers, function keys, esc...); VK carries the
// virtual-key code for everything else.
type RawKey struct {
	Name  string
	VK    int
	HasVK bool
}

// Named builds a RawKey for a named key.
func Named(name string) RawKey { return RawKey{Name: name} }

// VK builds a RawKey for a virtual-key code.
func VK(code int) RawKey { return RawKey{VK: code, HasVK: true} }

// Normalizer maps raw platform keys to tokens.
type Normalizer struct {
	// FoldSides maps left/right modifier variants to one token
	// (ctrl_l and ctrl_r both become key:ctrl). Use it on platforms that
	// cannot tell the sides apart reliably.
	FoldSides bool
}

// Normalize returns the canonical token for raw, or None.
func (n Normalizer) Normalize(raw RawKey) Token {
	if name := strings.ToLower(strings.TrimSpace(raw.Name)); name != "" {
		return Token(namedPrefix + n.foldName(name))
	}
	if raw.HasVK && raw.VK >= 0 {
		return Token(vkPrefix + strconv.Itoa(raw.VK))
	}
	return None
}

// Fold applies the normalizer's side folding to an already canonical token.
func (n Normalizer) Fold(t Token) Token {
	name, ok := strings.CutPrefix(string(t), namedPrefix)
	if !ok {
		return t
	}
	return Token(namedPrefix + n.foldName(name))
}

func (n Normalizer) foldName(name string) string {
	if !n.FoldSides {
		return name
	}
	if folded, ok := sideFolds[name]; ok {
		return folded
	}
	return name
}

// Parse accepts a canonical token string ("key:ctrl_l", "vk:65") or a
// shorthand ("ctrl_l", "a", "7", "f5") and returns its token.
func (n Normalizer) Parse(s string) (Token, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return None, fmt.Errorf("empty key")
	}

	if name, ok := strings.CutPrefix(s, namedPrefix); ok {
		if name == "" {
			return None, fmt.Errorf("invalid key %q: missing name", s)
		}
		return n.Normalize(Named(name)), nil
	}
	if code, ok := strings.CutPrefix(s, vkPrefix); ok {
		vk, err := strconv.Atoi(code)
		if err != nil || vk < 0 {
			return None, fmt.Errorf("invalid key %q: bad virtual-key code", s)
		}
		return n.Normalize(VK(vk)), nil
	}

	if len(s) == 1 {
		c := s[0]
		switch {
		case c >= 'a' && c <= 'z':
			return n.Normalize(VK(int(c - 'a' + 'A'))), nil
		case c >= '0' && c <= '9':
			return n.Normalize(VK(int(c))), nil
		}
	}
	if _, ok := knownNames[s]; ok {
		return n.Normalize(Named(s)), nil
	}
	if _, ok := modifierNames[s]; ok {
		return n.Normalize(Named(s)), nil
	}
	return None, fmt.Errorf("unknown key %q", s)
}

// ParseToken parses s with a normalizer that keeps modifier sides distinct.
func ParseToken(s string) (Token, error) {
	return Normalizer{}.Parse(s)
}

var sideFolds = map[string]string{
	"ctrl_l":  "ctrl",
	"ctrl_r":  "ctrl",
	"alt_l":   "alt",
	"alt_r":   "alt",
	"shift_l": "shift",
	"shift_r": "shift",
	"cmd_l":   "cmd",
	"cmd_r":   "cmd",
}

var modifierNames = map[string]struct{}{
	"ctrl": {}, "ctrl_l": {}, "ctrl_r": {},
	"alt": {}, "alt_l": {}, "alt_r": {}, "alt_gr": {},
	"shift": {}, "shift_l": {}, "shift_r": {},
	"cmd": {}, "cmd_l": {}, "cmd_r": {},
}

var knownNames = func() map[string]struct{} {
	names := []string{
		"esc", "enter", "tab", "space", "backspace", "delete", "insert",
		"home", "end", "page_up", "page_down", "up", "down", "left", "right",
		"caps_lock", "num_lock", "scroll_lock", "pause", "print_screen", "menu",
		"media_play_pause", "media_next", "media_previous", "media_volume_up",
		"media_volume_down", "media_volume_mute",
	}
	m := make(map[string]struct{}, len(names)+24)
	for _, n := range names {
		m[n] = struct{}{}
	}
	for i := 1; i <= 24; i++ {
		m["f"+strconv.Itoa(i)] = struct{}{}
	}
	return m
}()

var vkLabels = map[int]string{
	96: "Numpad 0", 97: "Numpad 1", 98: "Numpad 2", 99: "Numpad 3",
	100: "Numpad 4", 101: "Numpad 5", 102: "Numpad 6", 103: "Numpad 7",
	104: "Numpad 8", 105: "Numpad 9", 106: "Numpad *", 107: "Numpad +",
	109: "Numpad -", 110: "Numpad .", 111: "Numpad /",
}
