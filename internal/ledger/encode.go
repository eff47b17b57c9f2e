package ledger

import (
	"encoding/json"
	"fmt"
)

// Wire forms for canonical payload JSON. Monetary amounts are emitted as
// decimal strings so stored payloads never pass through floating point.

type assetWire struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Value   string `json:"value"`
}

type liabilityWire struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Value   string `json:"value"`
}

type expenseWire struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Amount  string `json:"amount"`
}

type incomeWire struct {
	Version  int     `json:"version"`
	Name     string  `json:"name"`
	Amount   string  `json:"amount"`
	Type     string  `json:"type"`
	Quadrant *string `json:"quadrant,omitempty"`
}

type cashSavingsWire struct {
	Version int    `json:"version"`
	Amount  string `json:"amount"`
}

type userWire struct {
	Version             int     `json:"version"`
	Name                *string `json:"name,omitempty"`
	Email               *string `json:"email,omitempty"`
	PreferredCurrencyID *string `json:"preferredCurrencyId,omitempty"`
}

// Encode serializes a validated payload to its canonical stored form. The
// output always carries the latest payload version and round-trips through
// Validate unchanged.
func Encode(p EntityPayload) (json.RawMessage, error) {
	var wire interface{}

	switch v := p.(type) {
	case AssetPayload:
		wire = assetWire{Version: payloadVersionLatest, Name: v.Name, Value: v.Value.String()}
	case LiabilityPayload:
		wire = liabilityWire{Version: payloadVersionLatest, Name: v.Name, Value: v.Value.String()}
	case ExpensePayload:
		wire = expenseWire{Version: payloadVersionLatest, Name: v.Name, Amount: v.Amount.String()}
	case IncomePayload:
		wire = incomeWire{
			Version:  payloadVersionLatest,
			Name:     v.Name,
			Amount:   v.Amount.String(),
			Type:     string(v.Type),
			Quadrant: v.Quadrant,
		}
	case CashSavingsPayload:
		wire = cashSavingsWire{Version: payloadVersionLatest, Amount: v.Amount.String()}
	case UserPayload:
		wire = userWire{
			Version:             payloadVersionLatest,
			Name:                v.Name,
			Email:               v.Email,
			PreferredCurrencyID: v.PreferredCurrencyID,
		}
	default:
		return nil, fmt.Errorf("unsupported payload type %T", p)
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}
