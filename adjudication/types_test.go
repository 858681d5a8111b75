package adjudication_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/estimate-engine/adjudication"
)

func TestParseResolvers_FoldSpellingsAndDefault(t *testing.T) {
	// GIVEN: form text in the spellings the intake form produces
	// WHEN: resolved
	// THEN: each lands on one canonical value, unknown text on the default

	assert.Equal(t, adjudication.ScopeEmbeddedFamily, adjudication.ParsePlanScope(" EmbeddedFamily "))
	assert.Equal(t, adjudication.ScopeAggregateFamily, adjudication.ParsePlanScope("aggregate"))
	assert.Equal(t, adjudication.ScopeIndividual, adjudication.ParsePlanScope("household"))

	assert.Equal(t, adjudication.CopayByCategoryPerDay, adjudication.ParseCopayPolicy("copay_by_category_per_day"))
	assert.Equal(t, adjudication.CopayStandardWaterfall, adjudication.ParseCopayPolicy(""))

	assert.Equal(t, adjudication.AllocateLineItemOrder, adjudication.ParseDeductibleAllocation("line_order"))
	assert.Equal(t, adjudication.AllocateLineItemOrder, adjudication.ParseDeductibleAllocation("line_item_order"))

	assert.Equal(t, adjudication.MPD100_25_25, adjudication.ParseMPDSchedule("100_25_25"))
	assert.Equal(t, adjudication.MPD100_50_50, adjudication.ParseMPDSchedule("150"))

	assert.Equal(t, adjudication.OutOfNetwork, adjudication.ParseNetwork("Out-of-Network"))
	assert.Equal(t, adjudication.InNetwork, adjudication.ParseNetwork("unknown"))

	assert.Equal(t, adjudication.CategoryWorkersComp, adjudication.ParsePayerCategory("Workers_Comp"))
	assert.Equal(t, adjudication.CategoryCommercial, adjudication.ParsePayerCategory("hmo"))

	assert.Equal(t, adjudication.RankTertiary, adjudication.ParseRank("Tertiary"))
	assert.Equal(t, adjudication.RankPrimary, adjudication.ParseRank(""))
}
