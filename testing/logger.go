package testing

import (
	"testing"

	"github.com/arloliu/geoparti/internal/logging"
	"github.com/arloliu/geoparti/types"
)

// NewTestLogger returns a logger that echoes every entry through t.Logf.
//
// Fatal fails the test instead of exiting.
func NewTestLogger(t testing.TB) types.Logger {
	return logging.NewRecorder(t)
}
