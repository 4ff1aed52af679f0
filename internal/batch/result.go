package batch

import (
	"fmt"

	json "github.com/json-iterator/go"
)

// AllTabsClosed is reported as the url by closeTab when no tab remains.
const AllTabsClosed = "All tabs closed"

// Result is the outcome of one command, or of a whole batch.
type Result struct {
	OK         bool            `json:"ok"`
	URL        string          `json:"url,omitempty"`
	Title      string          `json:"title,omitempty"`
	Content    string          `json:"content,omitempty"`
	Error      string          `json:"error,omitempty"`
	Screenshot string          `json:"screenshot,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

func failure(err error) Result {
	return Result{OK: false, Error: err.Error()}
}

func failuref(format string, args ...interface{}) Result {
	return Result{OK: false, Error: fmt.Sprintf(format, args...)}
}

// codec keeps markup readable in traces: no HTML escaping, like a browser's
// JSON.stringify.
var codec = json.Config{
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// Aggregate wraps a trace into the batch Result: ok, with the trace as
// compact JSON in content. A failing step does not make the aggregate fail.
func Aggregate(trace []Result) (Result, error) {
	if trace == nil {
		trace = []Result{}
	}
	b, err := codec.Marshal(trace)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode batch trace: %w", err)
	}
	return Result{OK: true, Content: string(b)}, nil
}

// Failed reports whether the last step of a trace failed, which is the only
// place a halting failure can be.
func Failed(trace []Result) bool {
	return len(trace) > 0 && !trace[len(trace)-1].OK
}

// Marshal encodes a result the way the CLI prints it.
func Marshal(r Result, indent bool) ([]byte, error) {
	if indent {
		return codec.MarshalIndent(r, "", "  ")
	}
	return codec.Marshal(r)
}

// Unmarshal decodes a result encoded by Marshal.
func Unmarshal(data []byte, r *Result) error {
	return codec.Unmarshal(data, r)
}
