package book

import (
	"fmt"

	marketdata "okxdata/internal/domain/entity/marketdata"
)

// SequenceGapError reports a discontinuity between an update's declared
// predecessor and the last applied sequence ID. It is raised only on the live
// path; persisted replay orders by (symbol, timestamp_ms) instead.
type SequenceGapError struct {
	Symbol         marketdata.SymbolID
	PrevSequenceID int64
	LastSequenceID int64
	HaveLast       bool
}

func (e *SequenceGapError) Error() string {
	if !e.HaveLast {
		return fmt.Sprintf("sequence gap for %s: update before any snapshot (prev sequence ID %d)",
			e.Symbol, e.PrevSequenceID)
	}
	return fmt.Sprintf("sequence gap for %s: previous sequence ID %d != last sequence ID %d",
		e.Symbol, e.PrevSequenceID, e.LastSequenceID)
}

// ValidateSequence checks snapshot/update continuity for one live event and
// returns the new last sequence ID on success.
//
// A snapshot resets the chain and must declare previous sequence ID -1. An
// update requires that a snapshot has been seen (haveLast) and that its
// declared predecessor matches the last applied sequence ID exactly.
func ValidateSequence(event *marketdata.BookEvent, last int64, haveLast bool) (int64, error) {
	switch event.Action {
	case marketdata.ActionSnapshot:
		if event.PrevSequenceID != -1 {
			return 0, fmt.Errorf("snapshot for %s with previous sequence ID %d, want -1",
				event.Symbol, event.PrevSequenceID)
		}
	case marketdata.ActionUpdate:
		if !haveLast {
			return 0, &SequenceGapError{
				Symbol:         event.Symbol,
				PrevSequenceID: event.PrevSequenceID,
			}
		}
		if event.PrevSequenceID != last {
			return 0, &SequenceGapError{
				Symbol:         event.Symbol,
				PrevSequenceID: event.PrevSequenceID,
				LastSequenceID: last,
				HaveLast:       true,
			}
		}
	default:
		return 0, fmt.Errorf("unsupported action: %s", event.Action)
	}
	return event.SequenceID, nil
}
