/*
Package framedeck provides a fixed capacity, newest-first history of frames.

A Deck is always full: it is pre-filled at construction with placeholder
entries so early reads return something shape-correct. Adding beyond the
capacity evicts the oldest entry, handing it to the release func.

# Basic Usage

	deck := framedeck.New(3, func() int { return 0 }, nil)
	deck.Add(1)
	deck.Add(2)
	newest, _ := deck.ReadNewest(0) // 2
	oldest, _ := deck.ReadOldest(0) // 0 (placeholder)

Relative reads outside [0, MaxLen) return ErrIndexOutOfRange. Callers that
need a minimum depth must clamp before reading.

A Deck is owned by a single stage and is not safe for concurrent use.
*/
package framedeck
