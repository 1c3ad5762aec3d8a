package interfaces

import "context"

// Notifier delivers out-of-band alerts. Best effort: implementations swallow
// and log their own failures.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// ProxyResolver selects the upstream proxy endpoint for a connection slot.
type ProxyResolver interface {
	Resolve(processIdx, connIdx int) (string, bool)
}

// Cache is the binary key-value boundary of the compressed feature cache.
type Cache interface {
	Save(ctx context.Context, key string, value []byte) error

	// Load returns the stored value, or ErrCacheMiss from the implementation
	// when the key is absent.
	Load(ctx context.Context, key string) ([]byte, error)
}
