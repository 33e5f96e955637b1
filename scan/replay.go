package scan

import (
	"bufio"
	"context"
	"encoding/hex"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ReplaySource plays a capture file of "aa:bb:cc:dd:ee:ff <hex>" lines.
// Blank lines and lines starting with # are skipped. Refresh plays the
// file again once it is exhausted.
type ReplaySource struct {
	path       string
	interval   time.Duration
	frames     chan Frame
	restart    chan struct{}
	continuous atomic.Bool
}

// NewReplaySource returns a source for the capture at path, waiting
// interval between two frames
func NewReplaySource(path string, interval time.Duration) *ReplaySource {
	return &ReplaySource{
		path:     path,
		interval: interval,
		frames:   make(chan Frame, 16),
		restart:  make(chan struct{}, 1),
	}
}

// ParseLine parses one capture line
func ParseLine(line string) (Frame, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Frame{}, errors.Errorf("replay: expected address and data, got %q", line)
	}
	addr, err := ParseAddr(fields[0])
	if err != nil {
		return Frame{}, err
	}
	data, err := hex.DecodeString(fields[1])
	if err != nil {
		return Frame{}, errors.Wrapf(err, "replay: data of %s", fields[0])
	}
	return Frame{Addr: addr, Data: data}, nil
}

// Frames implements Source
func (r *ReplaySource) Frames() <-chan Frame { return r.frames }

// Refresh implements Refresher
func (r *ReplaySource) Refresh() error {
	select {
	case r.restart <- struct{}{}:
	default:
	}
	return nil
}

// SetContinuous implements ContinuousScanner. In continuous mode the file
// is played again as soon as it ends.
func (r *ReplaySource) SetContinuous(on bool) {
	r.continuous.Store(on)
	if on {
		r.Refresh()
	}
}

// Run plays the file until ctx is done
func (r *ReplaySource) Run(ctx context.Context) error {
	defer close(r.frames)

	for ctx.Err() == nil {
		if err := r.play(ctx); err != nil {
			return err
		}

		var again <-chan time.Time
		if r.continuous.Load() {
			again = time.After(time.Second)
		}
		select {
		case <-ctx.Done():
		case <-r.restart:
		case <-again:
		}
	}
	return nil
}

func (r *ReplaySource) play(ctx context.Context) error {
	f, err := os.Open(r.path)
	if err != nil {
		return errors.Wrap(err, "replay")
	}
	defer f.Close()

	// drop a restart request made while the file was playing
	select {
	case <-r.restart:
	default:
	}

	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		n++
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		frame, err := ParseLine(line)
		if err != nil {
			log.Debug("Skipping line", n, "of", r.path, err)
			continue
		}

		select {
		case r.frames <- frame:
		case <-ctx.Done():
			return nil
		}
		if r.interval > 0 {
			select {
			case <-time.After(r.interval):
			case <-ctx.Done():
				return nil
			}
		}
	}
	return errors.Wrap(sc.Err(), "replay")
}
