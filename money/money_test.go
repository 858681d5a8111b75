package money_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/estimate-engine/money"
)

func TestParse_FormText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1000", "1000.00"},
		{"1,250.50", "1250.50"},
		{"$40", "40.00"},
		{"  75.5 ", "75.50"},
		{"12.345", "12.35"},
		{"12.344", "12.34"},
		{"", "0.00"},
		{"n/a", "0.00"},
		{"undefined", "0.00"},
		{"-15", "-15.00"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, money.Parse(tc.in).String())
		})
	}
}

func TestParseDecimal_ReportsMissing(t *testing.T) {
	_, ok := money.ParseDecimal("   ")
	assert.False(t, ok)

	_, ok = money.ParseDecimal("abc")
	assert.False(t, ok)

	d, ok := money.ParseDecimal("20%")
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.NewFromInt(20)))
}

func TestMoney_ArithmeticStaysAtCents(t *testing.T) {
	// GIVEN: 20% of $33.33
	// WHEN: computing the percentage
	// THEN: the result is rounded half away from zero to $6.67
	got := money.Parse("33.33").Percent(decimal.NewFromInt(20))
	assert.Equal(t, "6.67", got.String())
	assert.True(t, money.IsCents(got))

	// Float input never drifts
	sum := money.New(0.1).Add(money.New(0.2))
	assert.Equal(t, "0.30", sum.String())
}

func TestMoney_Clamps(t *testing.T) {
	assert.Equal(t, "0.00", money.FromInt(-5).NonNegative().String())
	assert.Equal(t, "5.00", money.FromInt(5).NonNegative().String())
	assert.Equal(t, "10.00", money.FromInt(50).Clamp(money.Zero, money.FromInt(10)).String())
	assert.Equal(t, "0.00", money.FromInt(-3).Clamp(money.Zero, money.FromInt(10)).String())
	assert.Equal(t, "3.00", money.Min(money.FromInt(3), money.FromInt(4)).String())
	assert.Equal(t, "4.00", money.Max(money.FromInt(3), money.FromInt(4)).String())
}

func TestMoney_Format(t *testing.T) {
	assert.Equal(t, "$1000.00", money.FromInt(1000).Format())
	assert.Equal(t, "-$12.50", money.Parse("-12.5").Format())
}

func TestMoney_JSON(t *testing.T) {
	out, err := json.Marshal(map[string]money.Money{"amount": money.Parse("400")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 400.00}`, string(out))

	var back struct {
		A money.Money `json:"a"`
		B money.Money `json:"b"`
		C money.Money `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12.5, "b": "$1,000", "c": "junk"}`), &back))
	assert.Equal(t, "12.50", back.A.String())
	assert.Equal(t, "1000.00", back.B.String())
	assert.Equal(t, "0.00", back.C.String())
}

func TestSum(t *testing.T) {
	assert.Equal(t, "0.00", money.Sum().String())
	assert.Equal(t, "6.60", money.Sum(money.New(1.1), money.New(2.2), money.New(3.3)).String())
}
