// Package keys normalizes raw platform key events into canonical tokens and
// groups tokens into chords.
//
// A token is either a named key ("key:ctrl_l", "key:f5") or a virtual-key
// code ("vk:65"). Events that carry neither normalize to None and are
// dropped before they reach the chord matcher.
package keys
