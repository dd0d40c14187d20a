package report

import "context"

// ScanFunc is called for each scan report (in-process, zero serialisation).
type ScanFunc func(ctx context.Context, scan Scan) error

// MaskFunc is called for each mask event.
type MaskFunc func(ctx context.Context, mask Mask) error

// Callback delivers events via Go function calls — the in-process path
// when the engine and its consumer live in the same binary.
type Callback struct {
	onScan ScanFunc
	onMask MaskFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onScan ScanFunc, onMask MaskFunc) *Callback {
	return &Callback{onScan: onScan, onMask: onMask}
}

func (c *Callback) Send(ctx context.Context, scan Scan) error {
	if c.onScan != nil {
		return c.onScan(ctx, scan)
	}
	return nil
}

func (c *Callback) SendMask(ctx context.Context, mask Mask) error {
	if c.onMask != nil {
		return c.onMask(ctx, mask)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
