package marketdata

import "fmt"

// SymbolID identifies a tracked trading pair. The set is closed: every symbol
// the pipeline knows about has a constant here, and unknown upstream names are
// rejected by ParseSymbolID instead of being resolved dynamically.
type SymbolID int32

const (
	SymbolBTCUSDT SymbolID = iota + 1
	SymbolETHUSDT
	SymbolSOLUSDT
)

var symbolNames = map[SymbolID]string{
	SymbolBTCUSDT: "BTC-USDT",
	SymbolETHUSDT: "ETH-USDT",
	SymbolSOLUSDT: "SOL-USDT",
}

// String renders the upstream instrument name (e.g. "BTC-USDT").
func (s SymbolID) String() string {
	if name, ok := symbolNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SymbolID(%d)", int32(s))
}

func (s SymbolID) IsValid() bool {
	_, ok := symbolNames[s]
	return ok
}

// ParseSymbolID maps an upstream instrument name onto a SymbolID.
func ParseSymbolID(name string) (SymbolID, error) {
	for id, n := range symbolNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown symbol name: %q", name)
}

// ActionID classifies an order book event.
type ActionID int32

const (
	ActionSnapshot ActionID = iota + 1
	ActionUpdate
)

var actionNames = map[ActionID]string{
	ActionSnapshot: "snapshot",
	ActionUpdate:   "update",
}

func (a ActionID) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("ActionID(%d)", int32(a))
}

// ParseActionID maps an upstream action name onto an ActionID.
func ParseActionID(name string) (ActionID, error) {
	for id, n := range actionNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown action name: %q", name)
}
