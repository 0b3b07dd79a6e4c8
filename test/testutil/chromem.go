package testutil

import (
	"testing"

	chromem "github.com/philippgille/chromem-go"
)

// CreateTempChromemGoClient creates a new in-memory chromem-go instance for
// an isolated test. The cleanup function is a no-op; the instance is
// garbage collected with the test.
func CreateTempChromemGoClient(t *testing.T) (*chromem.DB, func()) {
	return chromem.NewDB(), func() {}
}
