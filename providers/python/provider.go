package python

import (
	"github.com/oxhq/pymorph/providers/base"
)

// New creates a Python provider using base functionality with Python-specific AST mapping
func New() *base.Provider {
	return base.New(&Config{})
}
