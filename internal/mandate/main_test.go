package mandate

import (
	"testing"

	"go.uber.org/goleak"
)

// Prefetch and superseded reads run in goroutines; none may outlive the tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
