package window

// Factory creates windows from freshly read buffers. It is the policy point that
// decides whether windows are strongly retained or reclaimable.
type Factory interface {
	Create(buf []byte, position int64, length int, recover RecoveryFunc) (*Window, error)
}

// StrongFactory creates windows that hold their buffers until discarded.
type StrongFactory struct{}

// Create implements Factory.
func (StrongFactory) Create(buf []byte, position int64, length int, _ RecoveryFunc) (*Window, error) {
	return New(buf, position, length)
}

// ReclaimableFactory creates windows whose buffers the collector may reclaim. Sources
// that cannot re-read a past range pass a nil RecoveryFunc and get strong windows.
type ReclaimableFactory struct{}

// Create implements Factory.
func (ReclaimableFactory) Create(buf []byte, position int64, length int, recover RecoveryFunc) (*Window, error) {
	if recover == nil {
		return New(buf, position, length)
	}
	return NewReclaimable(buf, position, length, recover)
}

// DefaultFactory is used by readers that were not given a factory.
var DefaultFactory Factory = StrongFactory{}
