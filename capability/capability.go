// Package capability wraps the external search providers behind a uniform
// client interface. Each client validates its arguments against its tool
// spec before touching the network and translates provider responses and
// error codes into the orchestrator's payload shapes and failure taxonomy.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	voyago "github.com/voyago/voyago"
)

// Client executes one capability against its external provider.
type Client interface {
	// Invoke runs the capability with concrete argument values. Arguments
	// are validated against the client's spec; a schema violation fails
	// without any network call.
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)

	// Spec returns the tool spec this client implements.
	Spec() voyago.ToolSpec
}

// httpStatusError carries a provider status code for error mapping.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.status, e.body)
}

// doJSON issues a request and decodes a JSON body, mapping transport and
// status failures onto the taxonomy sentinels.
func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", voyago.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", voyago.ErrCallFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", voyago.ErrCallFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", voyago.ErrCallFailed, err)
		}
	}
	return nil
}

func statusError(status int, body string) error {
	cause := &httpStatusError{status: status, body: truncate(body, 256)}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", voyago.ErrAuthExpired, cause)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited: %v", voyago.ErrCallFailed, cause)
	case http.StatusNotFound:
		return fmt.Errorf("%w: not found: %v", voyago.ErrCallFailed, cause)
	default:
		return fmt.Errorf("%w: %v", voyago.ErrCallFailed, cause)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// stringArg pulls a required-or-defaulted string argument. Validation has
// already run, so absence of an optional argument yields the default.
func stringArg(args map[string]any, name, def string) string {
	if v, ok := args[name].(string); ok && v != "" {
		return v
	}
	return def
}

// intArg pulls an integer argument, accepting JSON's float64 decoding.
func intArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// floatArg pulls a numeric argument without truncating fractional values.
func floatArg(args map[string]any, name string, def float64) float64 {
	switch v := args[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// boolArg pulls a boolean argument.
func boolArg(args map[string]any, name string, def bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}
