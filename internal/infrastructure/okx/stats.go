package okx

import (
	"fmt"
	"sync/atomic"
)

// connStats counts per-connection activity since the last (re)connect. Pings
// are incremented from the keepalive goroutine, so that field goes through
// sync/atomic; everything else is owned by the read loop.
type connStats struct {
	Messages     int64
	Events       int64
	Pings        int64
	Pongs        int64
	Subscribes   int64
	Unsubscribes int64
}

func (s *connStats) reset() {
	atomic.StoreInt64(&s.Pings, 0)
	s.Messages = 0
	s.Events = 0
	s.Pongs = 0
	s.Subscribes = 0
	s.Unsubscribes = 0
}

func (s *connStats) String() string {
	return fmt.Sprintf("messages=%d events=%d pings=%d pongs=%d subscribes=%d unsubscribes=%d",
		s.Messages, s.Events, atomic.LoadInt64(&s.Pings), s.Pongs, s.Subscribes, s.Unsubscribes)
}
