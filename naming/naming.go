package naming

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/c360/rtkit/errors"
)

// Entry kinds.
const (
	KindComponent = "component"
	KindContext   = "context"
)

// Entry is the record a name resolves to.
type Entry struct {
	Kind    string            `json:"kind"`
	Target  string            `json:"target"`
	Node    string            `json:"node,omitempty"`
	Ports   []string          `json:"ports,omitempty"`
	Props   map[string]string `json:"props,omitempty"`
	BoundAt time.Time         `json:"bound_at"`
}

// Service is a name directory. Bind overwrites an existing binding; Unbind of
// an unknown name succeeds; Resolve of an unknown name fails with
// errors.ErrNotFound.
type Service interface {
	Bind(ctx context.Context, name string, entry Entry) error
	Unbind(ctx context.Context, name string) error
	Resolve(ctx context.Context, name string) (Entry, error)
	List(ctx context.Context) ([]string, error)
}

var namePattern = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

// ValidateName accepts names made of letters, digits and -/_=. that neither
// start nor end with a dot or slash. The same rule holds for NATS KV keys.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", errors.ErrBadParameter)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: name %q contains invalid characters", errors.ErrBadParameter, name)
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") ||
		strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: name %q has a leading or trailing separator", errors.ErrBadParameter, name)
	}
	return nil
}

// ComponentName is the conventional name of a component binding.
func ComponentName(instance string) string {
	return instance + ".rtc"
}

// ContextName is the conventional name of an execution context binding.
func ContextName(id string) string {
	return id + ".ec"
}
