// engine/engine.go
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/timer"
)

// Protocol commands understood by every rules-engine binary. A play command
// is the raw space-joined card list and has no fixed name.
const (
	CmdPlayerNumber = "player_number"
	CmdInitHand     = "init_hand"
	CmdPoint        = "point"
	CmdExit         = "exit"
)

var (
	ErrEngineUnavailable = errors.New("engine not available")
	ErrWriteFailure      = errors.New("engine write failure")
	ErrEngineTimeout     = errors.New("engine exchange timed out")
)

// Channel is the request/response capability over one rules-engine process.
// Implementations must answer exchanges strictly in the order they were sent.
type Channel interface {
	// Send writes one command line and waits for exactly lineCount response
	// lines. lineCount 0 writes without waiting.
	Send(ctx context.Context, command string, lineCount int) ([]string, error)
	// Shutdown requests graceful termination, best effort.
	Shutdown()
	Closed() bool
}

// exchange is one in-flight request awaiting its response-line quota.
type exchange struct {
	lineCount int
	lines     []string
	err       error
	done      chan struct{}
	settled   bool
	timerID   int64
}

// ProcessChannel owns a single external process and serializes command
// exchanges over its standard streams. Output lines resolve the oldest
// pending exchange; the engine is assumed to answer in request order.
type ProcessChannel struct {
	roomID  string
	stdin   io.Writer
	cmd     *exec.Cmd
	timers  *timer.Manager
	timeout time.Duration

	mu     sync.Mutex
	queue  []*exchange
	closed bool
}

// Spawn launches the rules-engine binary for one room. The mode is passed as
// the single program argument. A start failure is returned to the caller so
// the room can be created in a degraded state.
func Spawn(roomID, binary, workDir, mode string, timers *timer.Manager, timeout time.Duration) (*ProcessChannel, error) {
	cmd := exec.Command(binary, mode)
	cmd.Dir = workDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	c := newChannel(roomID, stdin, timers, timeout)
	c.cmd = cmd

	go c.readLoop(stdout)
	go c.logStderr(stderr)
	go func() {
		cmd.Wait()
		c.markClosed()
	}()

	return c, nil
}

func newChannel(roomID string, stdin io.Writer, timers *timer.Manager, timeout time.Duration) *ProcessChannel {
	return &ProcessChannel{
		roomID:  roomID,
		stdin:   stdin,
		timers:  timers,
		timeout: timeout,
	}
}

func (c *ProcessChannel) Send(ctx context.Context, command string, lineCount int) ([]string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrEngineUnavailable
	}

	if lineCount <= 0 {
		_, err := io.WriteString(c.stdin, command+"\n")
		c.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
		return nil, nil
	}

	ex := &exchange{
		lineCount: lineCount,
		done:      make(chan struct{}),
	}
	c.queue = append(c.queue, ex)

	if _, err := io.WriteString(c.stdin, command+"\n"); err != nil {
		c.dequeue(ex)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	if c.timeout > 0 && c.timers != nil {
		ex.timerID = c.timers.AddTimer(c.timeout, 0, func() { c.expire(ex) })
	}
	c.mu.Unlock()

	select {
	case <-ex.done:
		return ex.lines, ex.err
	case <-ctx.Done():
		// Cancellation is not supported mid-exchange: the entry stays queued
		// so its response lines are still consumed in order.
		return nil, ctx.Err()
	}
}

func (c *ProcessChannel) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, err := io.WriteString(c.stdin, CmdExit+"\n"); err != nil {
		logger.Log.Debugf("engine shutdown write failed [%s]: %v", c.roomID, err)
	}
}

func (c *ProcessChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readLoop consumes stdout until the stream ends, feeding each line to the
// head of the exchange queue.
func (c *ProcessChannel) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.feed(strings.TrimSpace(scanner.Text()))
	}
	c.markClosed()
}

func (c *ProcessChannel) feed(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		logger.Log.Warnf("engine [%s] unsolicited output: %q", c.roomID, line)
		return
	}

	head := c.queue[0]
	head.lines = append(head.lines, line)
	if len(head.lines) >= head.lineCount {
		c.queue = c.queue[1:]
		c.settle(head, nil)
	}
}

// settle resolves an exchange. Caller holds c.mu.
func (c *ProcessChannel) settle(ex *exchange, err error) {
	if ex.settled {
		return
	}
	ex.settled = true
	ex.err = err
	if ex.timerID != 0 && c.timers != nil {
		c.timers.RemoveTimer(ex.timerID)
	}
	close(ex.done)
}

// dequeue drops an exchange that never made it onto the wire. Caller holds c.mu.
func (c *ProcessChannel) dequeue(ex *exchange) {
	for i, queued := range c.queue {
		if queued == ex {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}

// expire is the deadline callback for one exchange. A wedged engine leaves
// the whole channel unusable, so the channel closes alongside the failure.
func (c *ProcessChannel) expire(ex *exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ex.settled {
		return
	}
	if !c.closed {
		c.closed = true
		logger.Log.Warnf("engine [%s] exchange deadline exceeded, closing channel", c.roomID)
	}
	c.settle(ex, ErrEngineTimeout)
}

// markClosed flips the channel to closed without resolving queued exchanges;
// their deadlines report the failure to the callers still waiting.
func (c *ProcessChannel) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	logger.Log.Infof("engine [%s] channel closed", c.roomID)
}

func (c *ProcessChannel) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Log.Warnf("engine stderr [%s]: %s", c.roomID, scanner.Text())
	}
}
