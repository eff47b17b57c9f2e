package ledger

import (
	"encoding/json"
	"testing"

	"github.com/finance-ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Asset(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "valid", raw: `{"name":"House","value":300000}`},
		{name: "valid string value", raw: `{"name":"House","value":"300000.50"}`},
		{name: "empty name", raw: `{"name":"","value":10}`, wantErr: "name"},
		{name: "whitespace name", raw: `{"name":"   ","value":10}`, wantErr: "name"},
		{name: "missing value", raw: `{"name":"House"}`, wantErr: "value"},
		{name: "negative value", raw: `{"name":"House","value":-1}`, wantErr: "value"},
		{name: "non-numeric value", raw: `{"name":"House","value":"lots"}`, wantErr: "value"},
		{name: "too many decimals", raw: `{"name":"House","value":"10.123"}`, wantErr: "value"},
		{name: "too many digits", raw: `{"name":"House","value":"10000000000000"}`, wantErr: "value"},
		{name: "not an object", raw: `[1,2]`, wantErr: "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Validate(types.EntityAsset, json.RawMessage(tt.raw))
			if tt.wantErr == "" {
				require.NoError(t, err)
				_, ok := payload.(AssetPayload)
				assert.True(t, ok)
				return
			}
			require.Error(t, err)
			vErr, ok := err.(*ValidationError)
			require.True(t, ok, "expected *ValidationError, got %T", err)
			assert.Equal(t, tt.wantErr, vErr.Field)
		})
	}
}

func TestValidate_ExpenseNegativeAmount(t *testing.T) {
	_, err := Validate(types.EntityExpense, json.RawMessage(`{"name":"Rent","amount":-5}`))
	require.Error(t, err)
	vErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "amount", vErr.Field)
}

func TestValidate_IncomeNormalizesStringAmount(t *testing.T) {
	payload, err := Validate(types.EntityIncome, json.RawMessage(`{"name":"Job","amount":"1200.50","type":"Earned"}`))
	require.NoError(t, err)

	income, ok := payload.(IncomePayload)
	require.True(t, ok)
	assert.Equal(t, "Job", income.Name)
	assert.Equal(t, types.IncomeEarned, income.Type)
	assert.Nil(t, income.Quadrant)
	assert.True(t, income.Amount.Equal(decimal.RequireFromString("1200.50")),
		"amount = %s, want 1200.50", income.Amount)
}

func TestValidate_IncomeRequiresType(t *testing.T) {
	_, err := Validate(types.EntityIncome, json.RawMessage(`{"name":"Job","amount":100}`))
	require.Error(t, err)
}

func TestValidate_CashSavings(t *testing.T) {
	payload, err := Validate(types.EntityCashSavings, json.RawMessage(`{"amount":"42.10"}`))
	require.NoError(t, err)
	cs := payload.(CashSavingsPayload)
	assert.True(t, cs.Amount.Equal(decimal.RequireFromString("42.10")))
}

func TestValidate_UserOpenBag(t *testing.T) {
	payload, err := Validate(types.EntityUser, json.RawMessage(`{"email":"a@b.c","preferredCurrencyId":"EUR","theme":"dark"}`))
	require.NoError(t, err)
	user := payload.(UserPayload)
	require.NotNil(t, user.Email)
	assert.Equal(t, "a@b.c", *user.Email)
	require.NotNil(t, user.PreferredCurrencyID)
	assert.Equal(t, "EUR", *user.PreferredCurrencyID)
	assert.Nil(t, user.Name)
}

func TestValidate_DecimalObjectForm(t *testing.T) {
	// decimal.js persisted shape for 1200.50
	raw := `{"name":"Job","amount":{"s":1,"e":3,"d":[1200,5000000]},"type":"Passive"}`
	payload, err := Validate(types.EntityIncome, json.RawMessage(raw))
	require.NoError(t, err)
	income := payload.(IncomePayload)
	assert.True(t, income.Amount.Equal(decimal.RequireFromString("1200.50")),
		"amount = %s, want 1200.50", income.Amount)
}

func TestValidate_VersionTag(t *testing.T) {
	_, err := Validate(types.EntityAsset, json.RawMessage(`{"name":"House","value":1,"version":1}`))
	assert.NoError(t, err)

	_, err = Validate(types.EntityAsset, json.RawMessage(`{"name":"House","value":1,"version":99}`))
	require.Error(t, err)
	vErr := err.(*ValidationError)
	assert.Equal(t, "version", vErr.Field)
}

func TestCheck_DoesNotRaise(t *testing.T) {
	res := Check(types.EntityAsset, json.RawMessage(`{"name":"","value":10}`))
	assert.False(t, res.Valid)
	require.NotNil(t, res.Err)
	assert.Equal(t, "name", res.Err.Field)
	assert.Nil(t, res.Payload)

	res = Check(types.EntityAsset, json.RawMessage(`{"name":"House","value":10}`))
	assert.True(t, res.Valid)
	assert.Nil(t, res.Err)
	assert.NotNil(t, res.Payload)
}

func TestValidateEventPayloads_ShapeRules(t *testing.T) {
	asset := json.RawMessage(`{"name":"House","value":10}`)

	tests := []struct {
		name    string
		action  types.ActionType
		before  json.RawMessage
		after   json.RawMessage
		wantErr bool
	}{
		{name: "create ok", action: types.ActionCreate, after: asset},
		{name: "create with before", action: types.ActionCreate, before: asset, after: asset, wantErr: true},
		{name: "create without after", action: types.ActionCreate, wantErr: true},
		{name: "update ok", action: types.ActionUpdate, before: asset, after: asset},
		{name: "update missing before", action: types.ActionUpdate, after: asset, wantErr: true},
		{name: "delete ok", action: types.ActionDelete, before: asset},
		{name: "delete with after", action: types.ActionDelete, before: asset, after: asset, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, after, err := ValidateEventPayloads(tt.action, types.EntityAsset, tt.before, tt.after)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if len(tt.before) > 0 {
				assert.NotNil(t, before)
			}
			if len(tt.after) > 0 {
				assert.NotNil(t, after)
			}
		})
	}
}

func TestNormalizeAmount_FloatEraPayload(t *testing.T) {
	// Version 0 events may carry amounts as JSON floats; they must still
	// normalize exactly.
	payload, err := Validate(types.EntityExpense, json.RawMessage(`{"name":"Rent","amount":850.25}`))
	require.NoError(t, err)
	expense := payload.(ExpensePayload)
	assert.True(t, expense.Amount.Equal(decimal.RequireFromString("850.25")))
}
