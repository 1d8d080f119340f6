package gan

import "github.com/pkg/errors"

var (
	// ErrNumeric is returned when a loss is not finite.
	ErrNumeric = errors.New("loss is not finite")

	// ErrConfigMismatch is returned when saved models were
	// created with a different configuration.
	ErrConfigMismatch = errors.New("saved model does not match configuration")
)
