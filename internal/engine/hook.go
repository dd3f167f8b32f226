package engine

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/himanishpuri/HotRandomPad/internal/keys"
	"github.com/himanishpuri/HotRandomPad/pkg/logger"
)

type EventKind int

const (
	KeyDown EventKind = iota
	KeyUp
)

func (k EventKind) String() string {
	if k == KeyUp {
		return "up"
	}
	return "down"
}

// KeyEvent is one press or release delivered by a platform hook.
type KeyEvent struct {
	Kind  EventKind
	Token keys.Token
}

// Hook is the platform keyboard source. Start begins delivery; the channel
// is closed when the hook stops or its input ends.
type Hook interface {
	Start() (<-chan KeyEvent, error)
	Stop() error
}

// LineHook reads scripted key events, one per line:
//
//	down ctrl_l
//	down 1
//	up 1
//	tap f5        # down then up
//	wait 150ms
//
// Keys use the token syntax accepted by keys.Normalizer.Parse. Blank lines
// and "#" comments are ignored; malformed lines are logged and skipped.
type LineHook struct {
	r    io.Reader
	norm keys.Normalizer
	log  *logger.Logger

	stop chan struct{}
	once sync.Once
}

func NewLineHook(r io.Reader, norm keys.Normalizer) *LineHook {
	return &LineHook{
		r:    r,
		norm: norm,
		log:  logger.GetLogger().With("hook"),
		stop: make(chan struct{}),
	}
}

func (h *LineHook) Start() (<-chan KeyEvent, error) {
	events := make(chan KeyEvent, 64)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(h.r)
		line := 0
		for sc.Scan() {
			line++
			evs, pause, err := h.parse(sc.Text())
			if err != nil {
				h.log.Warnf("line %d: %v", line, err)
				continue
			}
			if pause > 0 {
				select {
				case <-time.After(pause):
				case <-h.stop:
					return
				}
			}
			for _, ev := range evs {
				select {
				case events <- ev:
				case <-h.stop:
					return
				}
			}
		}
		if err := sc.Err(); err != nil {
			h.log.Errorf("reading key events: %v", err)
		}
	}()
	return events, nil
}

func (h *LineHook) parse(text string) ([]KeyEvent, time.Duration, error) {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, 0, nil
	}
	if len(fields) != 2 {
		return nil, 0, fmt.Errorf("want \"<down|up|tap|wait> <arg>\", got %q", text)
	}

	verb, arg := strings.ToLower(fields[0]), fields[1]
	if verb == "wait" {
		d, err := time.ParseDuration(arg)
		if err != nil {
			return nil, 0, fmt.Errorf("bad wait: %w", err)
		}
		return nil, d, nil
	}

	tok, err := h.norm.Parse(arg)
	if err != nil {
		return nil, 0, err
	}
	switch verb {
	case "down":
		return []KeyEvent{{Kind: KeyDown, Token: tok}}, 0, nil
	case "up":
		return []KeyEvent{{Kind: KeyUp, Token: tok}}, 0, nil
	case "tap":
		return []KeyEvent{{Kind: KeyDown, Token: tok}, {Kind: KeyUp, Token: tok}}, 0, nil
	default:
		return nil, 0, fmt.Errorf("unknown verb %q", verb)
	}
}

// Stop ends delivery. A blocked read is interrupted only if the reader is
// also an io.Closer.
func (h *LineHook) Stop() error {
	var err error
	h.once.Do(func() {
		close(h.stop)
		if c, ok := h.r.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
