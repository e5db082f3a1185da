package logging

import "github.com/arloliu/geoparti/types"

// NopLogger discards every entry. Fatal does not exit.
type NopLogger struct{}

var _ types.Logger = (*NopLogger)(nil)

// NewNop returns the logger used when the caller configures none.
func NewNop() *NopLogger {
	return &NopLogger{}
}

// With returns n; there is nothing to bind fields to.
func (n *NopLogger) With(...any) types.Logger { return n }

func (n *NopLogger) Debug(string, ...any) {}
func (n *NopLogger) Info(string, ...any)  {}
func (n *NopLogger) Warn(string, ...any)  {}
func (n *NopLogger) Error(string, ...any) {}
func (n *NopLogger) Fatal(string, ...any) {}
