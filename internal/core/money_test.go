package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: "100", want: "100"},
		{name: "two decimals", input: "250.50", want: "250.50"},
		{name: "dollar sign and spaces", input: " $42.10 ", want: "42.10"},
		{name: "exponent", input: "1e2", want: "100"},
		{name: "negative zero", input: "-0", want: "0"},
		{name: "empty", input: "", wantErr: true},
		{name: "only spaces", input: "   ", wantErr: true},
		{name: "letters", input: "abc", wantErr: true},
		{name: "negative", input: "-5", wantErr: true},
		{name: "nan", input: "NaN", wantErr: true},
		{name: "infinity", input: "Infinity", wantErr: true},
		{name: "huge exponent", input: "1e99999", wantErr: true},
		{name: "tiny exponent", input: "1e-99999", wantErr: true},
		{name: "zero with huge exponent", input: "0e99999", wantErr: true},
		{name: "too many digits", input: "12345678901234567890123456789012345", wantErr: true},
		{name: "too many decimals", input: "0.0000000000001", wantErr: true},
		{name: "widest integer", input: "1e33", want: "1000000000000000000000000000000000"},
		{name: "widest scale", input: "0.000000000001", want: "0.000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCharges)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAmountAdd(t *testing.T) {
	a, err := ParseAmount("100")
	require.NoError(t, err)
	b, err := ParseAmount("250.50")
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "350.50", sum.String())
	assert.Equal(t, 1, sum.Cmp(a))
	assert.InDelta(t, 350.5, sum.Float64(), 1e-9)

	var zero Amount
	assert.True(t, zero.IsZero())
	assert.Equal(t, "0", zero.String())
	seven, err := zero.Add(AmountFromInt(7))
	require.NoError(t, err)
	assert.Equal(t, "7", seven.String())

	big, err := ParseAmount("1e33")
	require.NoError(t, err)
	half, err := ParseAmount("0.5")
	require.NoError(t, err)
	kept, err := big.Add(half)
	assert.ErrorIs(t, err, ErrInexactSum)
	assert.Equal(t, big.String(), kept.String())
}

func TestChargesJSON(t *testing.T) {
	t.Run("number and string decode the same", func(t *testing.T) {
		var fromNumber, fromString Charges
		require.NoError(t, json.Unmarshal([]byte(`250.50`), &fromNumber))
		require.NoError(t, json.Unmarshal([]byte(`"250.50"`), &fromString))
		assert.Equal(t, Charges("250.50"), fromNumber)
		assert.Equal(t, fromNumber, fromString)
	})

	t.Run("malformed value is kept", func(t *testing.T) {
		var c Charges
		require.NoError(t, json.Unmarshal([]byte(`"twelve"`), &c))
		assert.Equal(t, Charges("twelve"), c)
		assert.False(t, c.Valid())

		out, err := json.Marshal(c)
		require.NoError(t, err)
		assert.JSONEq(t, `"twelve"`, string(out))
	})

	t.Run("valid value encodes as number", func(t *testing.T) {
		out, err := json.Marshal(Charges("42.00"))
		require.NoError(t, err)
		assert.Equal(t, `42.00`, string(out))
	})

	t.Run("null", func(t *testing.T) {
		c := Charges("1")
		require.NoError(t, json.Unmarshal([]byte(`null`), &c))
		assert.Equal(t, Charges(""), c)

		out, err := json.Marshal(c)
		require.NoError(t, err)
		assert.Equal(t, "null", string(out))
	})
}

func TestAmountJSON(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"12.5"`), &a))
	assert.Equal(t, "12.5", a.String())

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, "12.5", string(out))

	assert.Error(t, json.Unmarshal([]byte(`"-3"`), &a))
}
