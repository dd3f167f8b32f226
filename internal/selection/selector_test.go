package selection

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextEmptyFiles(t *testing.T) {
	s := NewSeeded(1, 2)
	for _, mode := range []Mode{Random, RoundRobin, Shuffle} {
		cur := Cursor{RRIndex: 3}
		got, ok := s.Next(mode, nil, &cur)
		assert.False(t, ok, mode.String())
		assert.Empty(t, got)
		assert.Equal(t, 3, cur.RRIndex, "cursor must not move without a selection")
	}
}

func TestNextUnknownMode(t *testing.T) {
	_, ok := NewSeeded(1, 2).Next(Mode(42), []string{"a"}, &Cursor{})
	assert.False(t, ok)
}

func TestRandomStaysInPool(t *testing.T) {
	s := NewSeeded(7, 7)
	files := []string{"a.wav", "b.wav", "c.wav"}
	cur := Cursor{RRIndex: 5, Queue: []string{"x"}, Pos: 0}
	seen := map[string]bool{}

	for i := 0; i < 200; i++ {
		f, ok := s.Next(Random, files, &cur)
		require.True(t, ok)
		require.Contains(t, files, f)
		seen[f] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, Cursor{RRIndex: 5, Queue: []string{"x"}, Pos: 0}, cur, "random must not touch the cursor")
}

func TestRandomNilCursor(t *testing.T) {
	f, ok := Next(Random, []string{"only.wav"}, nil)
	assert.True(t, ok)
	assert.Equal(t, "only.wav", f)
}

func TestRoundRobinScenario(t *testing.T) {
	files := []string{"x.wav", "y.wav"}
	var cur Cursor
	var got []string
	for i := 0; i < 4; i++ {
		f, ok := Next(RoundRobin, files, &cur)
		require.True(t, ok)
		got = append(got, f)
	}
	assert.Equal(t, []string{"x.wav", "y.wav", "x.wav", "y.wav"}, got)
}

func TestRoundRobinPeriod(t *testing.T) {
	files := []string{"a", "b", "c", "d", "e"}
	n := len(files)
	cur := Cursor{RRIndex: 2}

	var got []string
	for i := 0; i < 2*n; i++ {
		f, _ := Next(RoundRobin, files, &cur)
		got = append(got, f)
	}
	assert.Equal(t, got[:n], got[n:])
	first := slices.Clone(got[:n])
	slices.Sort(first)
	assert.Equal(t, files, first)
}

func TestRoundRobinStaleIndexAfterShrink(t *testing.T) {
	cur := Cursor{RRIndex: 7}
	f, ok := Next(RoundRobin, []string{"only.wav"}, &cur)
	require.True(t, ok)
	assert.Equal(t, "only.wav", f)
	assert.Equal(t, 0, cur.RRIndex)
}

func TestRoundRobinNegativeIndex(t *testing.T) {
	cur := Cursor{RRIndex: -1}
	f, _ := Next(RoundRobin, []string{"a", "b", "c"}, &cur)
	assert.Equal(t, "c", f)
	assert.Equal(t, 0, cur.RRIndex)
}

func TestRoundRobinDoesNotMutateFiles(t *testing.T) {
	files := []string{"a", "b"}
	orig := slices.Clone(files)
	cur := Cursor{}
	for i := 0; i < 5; i++ {
		Next(RoundRobin, files, &cur)
		Next(Shuffle, files, &cur)
	}
	assert.Equal(t, orig, files)
}

func TestShuffleRunsArePermutations(t *testing.T) {
	s := NewSeeded(11, 13)
	files := []string{"a", "b", "c", "d", "e", "f"}
	var cur Cursor

	for round := 0; round < 20; round++ {
		run := make([]string, 0, len(files))
		for i := 0; i < len(files); i++ {
			f, ok := s.Next(Shuffle, files, &cur)
			require.True(t, ok)
			run = append(run, f)
		}
		slices.Sort(run)
		assert.Equal(t, files, run, "round %d skipped or repeated a file", round)
	}
}

func TestShuffleDiscardsStaleQueue(t *testing.T) {
	s := NewSeeded(3, 4)
	cur := Cursor{Queue: []string{"gone.wav", "a.wav", "b.wav"}, Pos: 1}
	files := []string{"a.wav", "b.wav"}

	f, ok := s.Next(Shuffle, files, &cur)
	require.True(t, ok)
	assert.Contains(t, files, f)
	assert.Len(t, cur.Queue, 2)
	assert.NotContains(t, cur.Queue, "gone.wav")
	assert.Equal(t, 1, cur.Pos)
}

func TestShuffleKeepsValidQueue(t *testing.T) {
	cur := Cursor{Queue: []string{"b", "c", "a"}, Pos: 1}
	f, _ := Next(Shuffle, []string{"a", "b", "c"}, &cur)
	assert.Equal(t, "c", f)
	assert.Equal(t, 2, cur.Pos)
}

func TestCursorRoundTripReproducesNext(t *testing.T) {
	files := []string{"a", "b", "c", "d"}

	for _, mode := range []Mode{RoundRobin, Shuffle} {
		s := NewSeeded(21, 22)
		var cur Cursor
		s.Next(mode, files, &cur)
		s.Next(mode, files, &cur)

		data, err := json.Marshal(&cur)
		require.NoError(t, err)
		var restored Cursor
		require.NoError(t, json.Unmarshal(data, &restored))

		want, _ := s.Next(mode, files, &cur)
		got, _ := NewSeeded(99, 99).Next(mode, files, &restored)
		assert.Equal(t, want, got, mode.String())
	}
}

func TestCursorJSONFieldNames(t *testing.T) {
	cur := Cursor{RRIndex: 4, Queue: []string{"b", "a"}, Pos: 1}
	data, err := json.Marshal(&cur)
	require.NoError(t, err)
	assert.JSONEq(t, `{"saved_rr_index":4,"saved_shuffled_files":["b","a"],"saved_shuffled_index":1}`, string(data))

	empty, err := json.Marshal(&Cursor{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"saved_rr_index":0,"saved_shuffled_files":[],"saved_shuffled_index":0}`, string(empty))
}

func TestCursorCloneIsDeep(t *testing.T) {
	cur := Cursor{Queue: []string{"a", "b"}}
	cp := cur.Clone()
	cp.Queue[0] = "z"
	assert.Equal(t, "a", cur.Queue[0])
	assert.Equal(t, []string{"b"}, Cursor{Queue: []string{"a", "b"}, Pos: 1}.Remaining())
	assert.Nil(t, Cursor{Queue: []string{"a"}, Pos: 1}.Remaining())
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"random":      Random,
		"":            Random,
		"round_robin": RoundRobin,
		"Round-Robin": RoundRobin,
		"shuffle":     Shuffle,
		"Shuffle":     Shuffle,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("loudest")
	assert.Error(t, err)
}

func TestModeText(t *testing.T) {
	text, err := RoundRobin.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "round_robin", string(text))

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("shuffle")))
	assert.Equal(t, Shuffle, m)

	_, err = Mode(9).MarshalText()
	assert.Error(t, err)
}
