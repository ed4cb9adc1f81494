package engine

import (
	"github.com/tphakala/audioroute/internal/errors"
)

// ComponentEngine identifies the engine in errors and telemetry.
const ComponentEngine = "audiocore.engine"

// ErrFrameMismatch is returned by Process when the host hands over buffers
// that do not match the configured block size.
var ErrFrameMismatch = errors.Newf("host buffer does not match block size").
	Component(ComponentEngine).
	Category(errors.CategoryValidation).
	Build()

func configError(field string, value any) *errors.EnhancedError {
	return errors.Newf("invalid engine config: %s", field).
		Component(ComponentEngine).
		Category(errors.CategoryConfiguration).
		Context("value", value).
		Build()
}

func fatal(msg string, fields map[string]any) *errors.EnhancedError {
	b := errors.Newf("%s", msg).
		Component(ComponentEngine).
		Category(errors.CategoryRouting).
		Priority(errors.PriorityCritical)
	for k, v := range fields {
		b = b.Context(k, v)
	}
	return b.Build()
}
