// Package runtimepolicy tunes the Go scheduler for the host platform before the
// server starts. Selection is best effort: a failure is logged and the runtime
// keeps its defaults.
package runtimepolicy

import (
	"fmt"
	"runtime"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/soyeahso/orchestrator/internal/logging"
)

// Policy names.
const (
	Auto    = "auto"    // pick per platform
	Default = "default" // leave the runtime untouched
	Cgroup  = "cgroup"  // size GOMAXPROCS from the container CPU quota
)

// Result records what Select did.
type Result struct {
	Requested  string
	Applied    string
	GOMAXPROCS int
	Err        error
}

// ApplyFunc sizes the scheduler from the container quota, logging through logf.
type ApplyFunc func(logf func(string, ...any)) error

// Selector applies a scheduler policy. The zero value is not usable; call NewSelector.
type Selector struct {
	goos  string
	apply ApplyFunc
	log   *logging.Logger
}

// NewSelector returns a Selector for the running platform.
func NewSelector(log *logging.Logger) *Selector {
	return NewSelectorFor(runtime.GOOS, applyCgroupQuota, log)
}

// NewSelectorFor returns a Selector that behaves as if running on goos and
// uses apply for the cgroup policy.
func NewSelectorFor(goos string, apply ApplyFunc, log *logging.Logger) *Selector {
	if log == nil {
		log = logging.Nop()
	}
	return &Selector{
		goos:  goos,
		apply: apply,
		log:   log.Sub("runtime"),
	}
}

func applyCgroupQuota(logf func(string, ...any)) error {
	_, err := maxprocs.Set(maxprocs.Logger(logf))
	return err
}

// ForPlatform returns the policy Auto resolves to on goos.
func ForPlatform(goos string) string {
	if goos == "linux" {
		return Cgroup
	}
	return Default
}

// Select applies policy. It never fails: errors and panics from the platform
// hook are logged as warnings and the platform default stays in effect.
func (s *Selector) Select(policy string) (res Result) {
	res = Result{Requested: policy, Applied: Default}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("runtime policy %q panicked: %v", res.Requested, r)
			res.Applied = Default
		}
		if res.Err != nil {
			s.log.Warn().Err(res.Err).Msg("could not set runtime policy, using platform default")
		}
		res.GOMAXPROCS = runtime.GOMAXPROCS(0)
		s.log.Debug().
			Str("requested", res.Requested).
			Str("applied", res.Applied).
			Int("gomaxprocs", res.GOMAXPROCS).
			Msg("runtime policy selected")
	}()

	target := policy
	if target == "" || target == Auto {
		target = ForPlatform(s.goos)
	}

	switch target {
	case Default:
		return res
	case Cgroup:
		if err := s.apply(s.log.Printf); err != nil {
			res.Err = fmt.Errorf("applying %s policy: %w", Cgroup, err)
			return res
		}
		res.Applied = Cgroup
		return res
	default:
		res.Err = fmt.Errorf("unknown runtime policy %q", policy)
		return res
	}
}
