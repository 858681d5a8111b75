package adjudication_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/estimate-engine/adjudication"
)

func TestResolveCOBPayment(t *testing.T) {
	cases := []struct {
		name   string
		method adjudication.COBMethod
		in     adjudication.COBInput
		want   string
	}{
		{
			name:   "traditional limited by claim",
			method: adjudication.COBTraditional,
			in:     adjudication.COBInput{AsIfPayerPayment: usd("800"), AsIfAllowed: usd("1000"), PriorPaid: usd("600"), ClaimAmount: usd("400")},
			want:   "400.00",
		},
		{
			name:   "traditional limited by allowed minus prior",
			method: adjudication.COBTraditional,
			in:     adjudication.COBInput{AsIfPayerPayment: usd("800"), AsIfAllowed: usd("700"), PriorPaid: usd("600"), ClaimAmount: usd("400")},
			want:   "100.00",
		},
		{
			name:   "traditional never negative",
			method: adjudication.COBTraditional,
			in:     adjudication.COBInput{AsIfPayerPayment: usd("800"), AsIfAllowed: usd("500"), PriorPaid: usd("600"), ClaimAmount: usd("400")},
			want:   "0.00",
		},
		{
			name:   "non-duplication pays the difference",
			method: adjudication.COBNonDuplication,
			in:     adjudication.COBInput{AsIfPayerPayment: usd("800"), PriorPaid: usd("600"), ClaimAmount: usd("400")},
			want:   "200.00",
		},
		{
			name:   "non-duplication nothing when prior covered it",
			method: adjudication.COBNonDuplication,
			in:     adjudication.COBInput{AsIfPayerPayment: usd("800"), PriorPaid: usd("800"), ClaimAmount: usd("200")},
			want:   "0.00",
		},
		{
			name:   "carve-out pays as-if patient share",
			method: adjudication.COBCarveOut,
			in:     adjudication.COBInput{AsIfPatientShare: usd("240"), ClaimAmount: usd("1000")},
			want:   "240.00",
		},
		{
			name:   "carve-out limited by claim",
			method: adjudication.COBCarveOut,
			in:     adjudication.COBInput{AsIfPatientShare: usd("240"), ClaimAmount: usd("100")},
			want:   "100.00",
		},
		{
			name:   "unknown method is traditional",
			method: "mystery",
			in:     adjudication.COBInput{AsIfPayerPayment: usd("800"), AsIfAllowed: usd("1000"), PriorPaid: usd("600"), ClaimAmount: usd("400")},
			want:   "400.00",
		},
		{
			name:   "zero claim pays nothing",
			method: adjudication.COBCarveOut,
			in:     adjudication.COBInput{AsIfPatientShare: usd("240")},
			want:   "0.00",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertMoney(t, tc.want, adjudication.ResolveCOBPayment(tc.method, tc.in))
		})
	}
}

func TestResolveCOBMethod_Aliases(t *testing.T) {
	cases := map[string]adjudication.COBMethod{
		"traditional":                adjudication.COBTraditional,
		"Full":                       adjudication.COBTraditional,
		"100% allowable":             adjudication.COBTraditional,
		"full_benefit":               adjudication.COBTraditional,
		"medicare_secondary":         adjudication.COBTraditional,
		"":                           adjudication.COBTraditional,
		"non_duplication":            adjudication.COBNonDuplication,
		"NonDuplication":             adjudication.COBNonDuplication,
		"non-dup":                    adjudication.COBNonDuplication,
		"nondup":                     adjudication.COBNonDuplication,
		"carve_out":                  adjudication.COBCarveOut,
		"carveout":                   adjudication.COBCarveOut,
		" maintenance_of_benefits ":  adjudication.COBCarveOut,
		"MOB":                        adjudication.COBCarveOut,
	}
	for raw, want := range cases {
		assert.Equal(t, want, adjudication.ResolveCOBMethod(raw), raw)
	}
}

func TestTPLBlocks(t *testing.T) {
	liability := func(category adjudication.PayerCategory, subrogation bool) adjudication.Payer {
		p := newPayer("prior", adjudication.RankPrimary, adjudication.InNetwork)
		p.Category = category
		p.SubrogationActive = subrogation
		return p
	}
	commercial := newPayer("next", adjudication.RankSecondary, adjudication.InNetwork)
	medicaid := newPayer("next", adjudication.RankSecondary, adjudication.InNetwork)
	medicaid.Category = adjudication.CategoryMedicaid

	assert.True(t, adjudication.TPLBlocks(liability(adjudication.CategoryAuto, true), commercial))
	assert.True(t, adjudication.TPLBlocks(liability(adjudication.CategoryWorkersComp, true), commercial))
	assert.False(t, adjudication.TPLBlocks(liability(adjudication.CategoryAuto, false), commercial))
	assert.False(t, adjudication.TPLBlocks(liability(adjudication.CategoryCommercial, true), commercial))
	assert.False(t, adjudication.TPLBlocks(liability(adjudication.CategoryAuto, true), medicaid))
}
