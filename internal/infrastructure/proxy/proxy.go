// Package proxy resolves the upstream SOCKS5 endpoint for a connection slot.
package proxy

import (
	"fmt"
	"os"
	"strings"
)

// Pool holds the proxy endpoints shared by every connection slot. A slot picks
// its endpoint by (processIdx * connsPerProcess + connIdx) mod pool size, so
// distinct slots spread across the pool deterministically.
type Pool struct {
	addrs           []string
	connsPerProcess int
}

func NewPool(addrs []string, connsPerProcess int) *Pool {
	if connsPerProcess <= 0 {
		connsPerProcess = 1
	}
	return &Pool{addrs: addrs, connsPerProcess: connsPerProcess}
}

// LoadPool reads proxy addresses from newline-separated files, skipping blank
// lines.
func LoadPool(paths []string, connsPerProcess int) (*Pool, error) {
	var addrs []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read proxy file %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			addrs = append(addrs, line)
		}
	}
	return NewPool(addrs, connsPerProcess), nil
}

func (p *Pool) Resolve(processIdx, connIdx int) (string, bool) {
	if p == nil || len(p.addrs) == 0 {
		return "", false
	}
	slot := (processIdx*p.connsPerProcess + connIdx) % len(p.addrs)
	if slot < 0 {
		slot += len(p.addrs)
	}
	return p.addrs[slot], true
}
