// Package script embeds a zygomys interpreter wired to the AR bridge.
// It powers the interactive console and batch script execution: each
// builtin maps to one bridge command, and an optional headless engine
// exposes virtual-world hooks so scripts can stage planes, tracking
// and camera motion themselves.
package script

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
	"go.uber.org/zap"

	"github.com/arlow/armature/pkg/bridge"
	"github.com/arlow/armature/pkg/engine/headless"
)

// DefaultEvalTimeout bounds one Eval call. It is deliberately generous:
// a single evaluation may download a model over the network.
const DefaultEvalTimeout = 30 * time.Second

// EvalError is a script-level failure with source position when the
// interpreter reported one. Line is 1-based; 0 means unknown.
type EvalError struct {
	Line    int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Options configure a Console.
type Options struct {
	// Sim enables the virtual-world builtins (put-plane, set-tracking,
	// set-camera, advance). Nil disables them.
	Sim *headless.Engine

	// Timeout bounds a single Eval. Zero means DefaultEvalTimeout.
	Timeout time.Duration

	Logger *zap.Logger
}

// Console evaluates AR scripts against a bridge. Evaluations are
// serialized by generation: when a new Eval supersedes a slow one, the
// old result is discarded on arrival.
type Console struct {
	bridge *bridge.Bridge
	sim    *headless.Engine
	log    *zap.Logger

	timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// New returns a console bound to b.
func New(b *bridge.Bridge, opts Options) *Console {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultEvalTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Console{
		bridge:  b,
		sim:     opts.Sim,
		log:     opts.Logger,
		timeout: opts.Timeout,
	}
}

type evalOutcome struct {
	result string
	errs   []EvalError
	err    error
}

// Eval runs one script in a fresh interpreter. It returns the printed
// form of the last value, script errors with positions, and a fatal
// error for timeouts, panics and superseded evaluations. Session state
// persists between calls; interpreter bindings do not.
func (c *Console) Eval(source string) (string, []EvalError, error) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	ch := make(chan evalOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalOutcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		result, errs, err := c.eval(source)
		ch <- evalOutcome{result: result, errs: errs, err: err}
	}()

	result, errs, err := c.waitWithTimeout(ch, gen)
	if err != nil {
		c.log.Warn("evaluation aborted", zap.Error(err))
	}
	return result, errs, err
}

// EvalFile reads path and evaluates its contents as one script.
func (c *Console) EvalFile(path string) (string, []EvalError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read script: %w", err)
	}
	return c.Eval(string(data))
}

func (c *Console) eval(source string) (string, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return "", nil, nil
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()
	c.register(env)

	processed := preprocessSource(source)
	if err := env.LoadString(processed); err != nil {
		return "", parseScriptError(err), nil
	}

	val, err := env.Run()
	if err != nil {
		return "", parseScriptError(err), nil
	}
	return printSexp(val), nil, nil
}

// waitWithTimeout returns the outcome from ch unless the timeout fires
// or a newer evaluation has started, in which case the in-flight one is
// abandoned. The goroutine writing ch never blocks; ch is buffered.
func (c *Console) waitWithTimeout(ch <-chan evalOutcome, gen uint64) (string, []EvalError, error) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		c.mu.Lock()
		current := c.generation
		c.mu.Unlock()
		if gen != current {
			return "", nil, fmt.Errorf("evaluation superseded by newer request")
		}
		return out.result, out.errs, out.err
	case <-timer.C:
		return "", nil, fmt.Errorf("evaluation timed out after %s", c.timeout)
	}
}

func printSexp(val zygo.Sexp) string {
	if val == nil {
		return ""
	}
	if _, ok := val.(*zygo.SexpSentinel); ok {
		return ""
	}
	return val.SexpString(nil)
}

var (
	linePattern      = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)
	linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)
)

// parseScriptError extracts a source line from a zygomys error message
// when one is present.
func parseScriptError(err error) []EvalError {
	msg := err.Error()

	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}
	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}
	return []EvalError{{Message: msg}}
}
