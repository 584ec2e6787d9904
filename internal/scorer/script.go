package scorer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

const scriptCallTimeout = 1 * time.Second

// ScriptScorer runs a user-supplied JavaScript scorer inside a sandboxed
// goja runtime. The script must define
//
//	function score(tokens) { return <number> }
//
// which is called once per input of the batch. The runtime only exposes
// log/console.log; there is no IO surface.
type ScriptScorer struct {
	runtime *goja.Runtime
	scoreFn goja.Callable
	mu      sync.Mutex
}

// NewScriptScorer compiles the script and resolves its score function.
func NewScriptScorer(src string) (*ScriptScorer, error) {
	program, err := goja.Compile("scorer.js", src, true)
	if err != nil {
		return nil, fmt.Errorf("scorer: script compile: %w", err)
	}

	runtime := goja.New()
	injectGlobals(runtime)

	if _, err := runtime.RunProgram(program); err != nil {
		return nil, fmt.Errorf("scorer: script init: %w", err)
	}

	fn, ok := goja.AssertFunction(runtime.Get("score"))
	if !ok {
		return nil, fmt.Errorf("scorer: script does not define a score(tokens) function")
	}

	return &ScriptScorer{runtime: runtime, scoreFn: fn}, nil
}

// Score implements game.Scorer. Calls are serialized; goja runtimes are
// not safe for concurrent use.
func (s *ScriptScorer) Score(ctx context.Context, inputs [][]string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make([]float64, len(inputs))
	for i, input := range inputs {
		arg := s.runtime.ToValue(input)

		timer := time.AfterFunc(scriptCallTimeout, func() {
			// Interrupt a runaway score call.
			s.runtime.Interrupt("script execution timeout")
		})
		value, err := s.scoreFn(goja.Undefined(), arg)
		timer.Stop()
		s.runtime.ClearInterrupt()

		if err != nil {
			return nil, fmt.Errorf("scorer: score call failed: %w", err)
		}
		scores[i] = value.ToFloat()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	return scores, nil
}

func injectGlobals(runtime *goja.Runtime) {
	logFn := func(call goja.FunctionCall) goja.Value {
		// Scores must depend on the tokens only; script logging is a
		// no-op sink kept so that debug prints don't break scripts.
		return goja.Undefined()
	}
	runtime.Set("log", logFn)
	console := runtime.NewObject()
	console.Set("log", runtime.Get("log"))
	runtime.Set("console", console)
}
