//go:build tools

// Package agora tracks tool dependencies used through go generate, such as
// mockgen for internal/mocks.
package agora

import (
	_ "go.uber.org/mock/mockgen"
)
