// Package ledger implements the event-sourcing core of the finance service:
// payload validation, the financial state value type, pure reducers, replay,
// and derived metric computation. The package performs no I/O.
package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/finance-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// payloadVersionLatest is the newest payload encoding this service writes.
// Version 0 (an absent tag) is the original encoding where amounts could be
// JSON floats; version 1 encodes amounts as decimal strings. Old events are
// never migrated, the normalizer keeps accepting every version committed.
const payloadVersionLatest = 1

// maxAmount bounds monetary values to what NUMERIC(15,2) can store:
// 13 integer digits, 2 fractional.
var maxAmount = decimal.New(1, 13)

// ValidationError describes a payload field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload field %q: %s", e.Field, e.Message)
}

// EntityPayload is the tagged union of per-entity-type payload shapes carried
// in an event's beforeValue/afterValue. Concrete types are produced by
// Validate; reducers only ever see these, never raw JSON.
type EntityPayload interface {
	payloadEntityType() types.EntityType
}

// AssetPayload is the validated shape of an ASSET payload
type AssetPayload struct {
	Name    string
	Value   decimal.Decimal
	Version int
}

func (AssetPayload) payloadEntityType() types.EntityType { return types.EntityAsset }

// LiabilityPayload is the validated shape of a LIABILITY payload
type LiabilityPayload struct {
	Name    string
	Value   decimal.Decimal
	Version int
}

func (LiabilityPayload) payloadEntityType() types.EntityType { return types.EntityLiability }

// ExpensePayload is the validated shape of an EXPENSE payload
type ExpensePayload struct {
	Name    string
	Amount  decimal.Decimal
	Version int
}

func (ExpensePayload) payloadEntityType() types.EntityType { return types.EntityExpense }

// IncomePayload is the validated shape of an INCOME payload
type IncomePayload struct {
	Name     string
	Amount   decimal.Decimal
	Type     types.IncomeType
	Quadrant *string
	Version  int
}

func (IncomePayload) payloadEntityType() types.EntityType { return types.EntityIncome }

// CashSavingsPayload is the validated shape of a CASH_SAVINGS payload
type CashSavingsPayload struct {
	Amount  decimal.Decimal
	Version int
}

func (CashSavingsPayload) payloadEntityType() types.EntityType { return types.EntityCashSavings }

// UserPayload is the validated shape of a USER payload. All fields are
// optional preferences; unknown fields are ignored rather than rejected so
// the bag stays extensible.
type UserPayload struct {
	Name                *string
	Email               *string
	PreferredCurrencyID *string
	Version             int
}

func (UserPayload) payloadEntityType() types.EntityType { return types.EntityUser }

// Validate checks a raw JSON payload against the schema for entityType and
// returns the normalized, strongly-typed payload. Monetary fields are
// normalized to exact decimals regardless of the wire form they arrived in.
func Validate(entityType types.EntityType, raw json.RawMessage) (EntityPayload, error) {
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}

	version, err := payloadVersion(fields)
	if err != nil {
		return nil, err
	}

	switch entityType {
	case types.EntityAsset:
		name, err := requireName(fields)
		if err != nil {
			return nil, err
		}
		value, err := requireAmount(fields, "value")
		if err != nil {
			return nil, err
		}
		return AssetPayload{Name: name, Value: value, Version: version}, nil

	case types.EntityLiability:
		name, err := requireName(fields)
		if err != nil {
			return nil, err
		}
		value, err := requireAmount(fields, "value")
		if err != nil {
			return nil, err
		}
		return LiabilityPayload{Name: name, Value: value, Version: version}, nil

	case types.EntityExpense:
		name, err := requireName(fields)
		if err != nil {
			return nil, err
		}
		amount, err := requireAmount(fields, "amount")
		if err != nil {
			return nil, err
		}
		return ExpensePayload{Name: name, Amount: amount, Version: version}, nil

	case types.EntityIncome:
		name, err := requireName(fields)
		if err != nil {
			return nil, err
		}
		amount, err := requireAmount(fields, "amount")
		if err != nil {
			return nil, err
		}
		incomeType, err := requireString(fields, "type")
		if err != nil {
			return nil, err
		}
		quadrant, err := optionalString(fields, "quadrant")
		if err != nil {
			return nil, err
		}
		return IncomePayload{
			Name:     name,
			Amount:   amount,
			Type:     types.IncomeType(incomeType),
			Quadrant: quadrant,
			Version:  version,
		}, nil

	case types.EntityCashSavings:
		amount, err := requireAmount(fields, "amount")
		if err != nil {
			return nil, err
		}
		return CashSavingsPayload{Amount: amount, Version: version}, nil

	case types.EntityUser:
		name, err := optionalString(fields, "name")
		if err != nil {
			return nil, err
		}
		email, err := optionalString(fields, "email")
		if err != nil {
			return nil, err
		}
		currency, err := optionalString(fields, "preferredCurrencyId")
		if err != nil {
			return nil, err
		}
		return UserPayload{Name: name, Email: email, PreferredCurrencyID: currency, Version: version}, nil

	default:
		return nil, &ValidationError{Field: "entityType", Message: fmt.Sprintf("unknown entity type %q", entityType)}
	}
}

// ValidationResult is the non-raising form of a validation outcome, for call
// sites that must not propagate an error.
type ValidationResult struct {
	Valid   bool
	Payload EntityPayload
	Err     *ValidationError
}

// Check validates like Validate but reports the outcome as a result value.
func Check(entityType types.EntityType, raw json.RawMessage) ValidationResult {
	payload, err := Validate(entityType, raw)
	if err != nil {
		vErr, ok := err.(*ValidationError)
		if !ok {
			vErr = &ValidationError{Field: "payload", Message: err.Error()}
		}
		return ValidationResult{Valid: false, Err: vErr}
	}
	return ValidationResult{Valid: true, Payload: payload}
}

// ValidateEventPayloads validates beforeValue/afterValue together against the
// action type: CREATE carries only afterValue, DELETE only beforeValue,
// UPDATE both. It returns the decoded payloads (nil where absent).
func ValidateEventPayloads(action types.ActionType, entityType types.EntityType, before, after json.RawMessage) (beforePayload, afterPayload EntityPayload, err error) {
	switch action {
	case types.ActionCreate:
		if len(before) > 0 {
			return nil, nil, &ValidationError{Field: "beforeValue", Message: "must be absent for CREATE"}
		}
		if len(after) == 0 {
			return nil, nil, &ValidationError{Field: "afterValue", Message: "required for CREATE"}
		}
	case types.ActionUpdate:
		if len(before) == 0 {
			return nil, nil, &ValidationError{Field: "beforeValue", Message: "required for UPDATE"}
		}
		if len(after) == 0 {
			return nil, nil, &ValidationError{Field: "afterValue", Message: "required for UPDATE"}
		}
	case types.ActionDelete:
		if len(before) == 0 {
			return nil, nil, &ValidationError{Field: "beforeValue", Message: "required for DELETE"}
		}
		if len(after) > 0 {
			return nil, nil, &ValidationError{Field: "afterValue", Message: "must be absent for DELETE"}
		}
	default:
		return nil, nil, &ValidationError{Field: "actionType", Message: fmt.Sprintf("unknown action type %q", action)}
	}

	if len(before) > 0 {
		beforePayload, err = Validate(entityType, before)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(after) > 0 {
		afterPayload, err = Validate(entityType, after)
		if err != nil {
			return nil, nil, err
		}
	}
	return beforePayload, afterPayload, nil
}

// decodeFields parses a payload object keeping numbers as json.Number so no
// precision is lost before normalization.
func decodeFields(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Field: "payload", Message: "empty payload"}
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, &ValidationError{Field: "payload", Message: fmt.Sprintf("not a JSON object: %v", err)}
	}
	return fields, nil
}

func payloadVersion(fields map[string]interface{}) (int, error) {
	v, ok := fields["version"]
	if !ok {
		return 0, nil
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, &ValidationError{Field: "version", Message: "must be a number"}
	}
	version, err := num.Int64()
	if err != nil {
		return 0, &ValidationError{Field: "version", Message: "must be an integer"}
	}
	if version < 0 || version > payloadVersionLatest {
		return 0, &ValidationError{Field: "version", Message: fmt.Sprintf("unsupported payload version %d", version)}
	}
	return int(version), nil
}

func requireName(fields map[string]interface{}) (string, error) {
	return requireString(fields, "name")
}

func requireString(fields map[string]interface{}, field string) (string, error) {
	v, ok := fields[field]
	if !ok || v == nil {
		return "", &ValidationError{Field: field, Message: "required"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: field, Message: "must be a string"}
	}
	if strings.TrimSpace(s) == "" {
		return "", &ValidationError{Field: field, Message: "must not be empty"}
	}
	return s, nil
}

func optionalString(fields map[string]interface{}, field string) (*string, error) {
	v, ok := fields[field]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, &ValidationError{Field: field, Message: "must be a string"}
	}
	return &s, nil
}

// requireAmount extracts a number-like monetary field and normalizes it to an
// exact non-negative decimal within NUMERIC(15,2) bounds.
func requireAmount(fields map[string]interface{}, field string) (decimal.Decimal, error) {
	v, ok := fields[field]
	if !ok || v == nil {
		return decimal.Zero, &ValidationError{Field: field, Message: "required"}
	}

	d, err := NormalizeAmount(v)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Message: err.Error()}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: field, Message: "must not be negative"}
	}
	if d.Cmp(maxAmount) >= 0 {
		return decimal.Zero, &ValidationError{Field: field, Message: "exceeds 13 integer digits"}
	}
	if !d.Equal(d.Truncate(2)) {
		return decimal.Zero, &ValidationError{Field: field, Message: "more than 2 decimal places"}
	}
	return d, nil
}

// NormalizeAmount converts any accepted number-like wire form to an exact
// decimal: a JSON number (json.Number, never float64, so no rounding loss),
// a numeric string, or a decimal object of the decimal.js persisted shape
// {"s": sign, "e": exponent, "d": [base-1e7 digit groups]}.
func NormalizeAmount(v interface{}) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("not a valid number: %q", n.String())
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, fmt.Errorf("not a numeric string: %q", n)
		}
		return d, nil
	case decimal.Decimal:
		return n, nil
	case float64:
		// Only reachable for values decoded without UseNumber; NewFromFloat
		// recovers the shortest exact decimal representation.
		return decimal.NewFromFloat(n), nil
	case map[string]interface{}:
		return decimalFromObject(n)
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric form %T", v)
	}
}

// decimalFromObject reconstructs a decimal.js value: d holds base-1e7 digit
// groups, e is the decimal exponent of the most significant digit, s the sign.
func decimalFromObject(obj map[string]interface{}) (decimal.Decimal, error) {
	groups, ok := obj["d"].([]interface{})
	if !ok || len(groups) == 0 {
		return decimal.Zero, fmt.Errorf("decimal object missing digit groups")
	}

	var digits strings.Builder
	for i, g := range groups {
		num, ok := g.(json.Number)
		if !ok {
			return decimal.Zero, fmt.Errorf("decimal object digit group %d is not a number", i)
		}
		n, err := num.Int64()
		if err != nil || n < 0 {
			return decimal.Zero, fmt.Errorf("decimal object digit group %d is invalid", i)
		}
		if i == 0 {
			fmt.Fprintf(&digits, "%d", n)
		} else {
			fmt.Fprintf(&digits, "%07d", n)
		}
	}

	mantissa, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("decimal object digits are not numeric")
	}

	exponent, err := objectInt(obj, "e")
	if err != nil {
		return decimal.Zero, err
	}
	sign, err := objectInt(obj, "s")
	if err != nil {
		return decimal.Zero, err
	}
	if sign < 0 {
		mantissa.Neg(mantissa)
	}

	// The digit string represents 0.<digits> * 10^(e+1).
	exp := exponent + 1 - int64(digits.Len())
	return decimal.NewFromBigInt(mantissa, int32(exp)), nil
}

func objectInt(obj map[string]interface{}, field string) (int64, error) {
	num, ok := obj[field].(json.Number)
	if !ok {
		return 0, fmt.Errorf("decimal object missing %q", field)
	}
	n, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("decimal object field %q is not an integer", field)
	}
	return n, nil
}
