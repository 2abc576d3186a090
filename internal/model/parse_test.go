package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"185.00", 185.0},
		{"$1,450.00", 1450.0},
		{"  $42.50 ", 42.5},
		{"(63.96)", 63.96},
		{"-12.00", 12.0},
		{"12.00-", 12.0},
		{"USD 99.95", 99.95},
		{"(cid:36)185.00", 185.0},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ParseAmount(tt.in), 0.0001, "input %q", tt.in)
	}
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, "2024-03-12", ParseDate("2024-03-12"))
	assert.Equal(t, "2024-03-12", ParseDate("03/12/2024"))
	assert.Equal(t, "2024-03-02", ParseDate("3/2/2024"))
	assert.Equal(t, "2024-03-12", ParseDate("Mar 12, 2024"))
	assert.Equal(t, "2024-03-12", ParseDate("March 12, 2024"))
	assert.Equal(t, "", ParseDate("yesterday"))
	assert.Equal(t, "", ParseDate(""))
}

func TestParseDate_ExplicitLayout(t *testing.T) {
	assert.Equal(t, "2024-12-03", ParseDate("03/12/2024", "02/01/2006"))
	assert.Equal(t, "", ParseDate("03/12/2024", "2006-01-02"))
}

func TestLinkSet(t *testing.T) {
	assert.Equal(t, LinkSet{11, 12}, ParseLinkSet("11|12"))
	assert.Equal(t, LinkSet{7}, ParseLinkSet(" 7 "))
	assert.Empty(t, ParseLinkSet(""))
	assert.Empty(t, ParseLinkSet("a|b"))

	ls := LinkSet{11}
	ls = ls.Append(12)
	ls = ls.Append(12) // idempotent
	assert.Equal(t, "11|12", ls.String())
	assert.True(t, ls.Contains(11))
	assert.False(t, ls.Contains(13))
}

func TestProviderMatches(t *testing.T) {
	assert.True(t, ProviderMatches("Sutter", "Sutter Health"))
	assert.True(t, ProviderMatches("sutter health", "Sutter"))
	assert.True(t, ProviderMatches("CVS", "CVS"))
	assert.False(t, ProviderMatches("CVS", "Walgreens"))
	assert.False(t, ProviderMatches("", "Walgreens"))
}

func TestServiceYear(t *testing.T) {
	assert.Equal(t, 2024, ClaimRecord{ServiceDate: "2024-03-12"}.ServiceYear())
	assert.Equal(t, 0, ClaimRecord{ServiceDate: ""}.ServiceYear())
	assert.Equal(t, 0, ClaimRecord{ServiceDate: "n/a"}.ServiceYear())
}

func TestCountable(t *testing.T) {
	assert.True(t, ClaimRecord{}.Countable(), "unset authority counts")
	assert.True(t, ClaimRecord{IsAuthoritative: AuthorityYes}.Countable())
	assert.False(t, ClaimRecord{IsAuthoritative: AuthorityNo}.Countable())
}

func TestFileToken(t *testing.T) {
	token := FileToken("2024-03-15", "Costco Pharmacy #423", "Prescription", 42.5, ".pdf")
	assert.Equal(t, "2024-03-15_Costco_Pharmacy_423_Prescription_$42.50.pdf", token)

	// Underscores and hyphens in the raw segments strip like any other
	// punctuation; only the generated separators remain.
	token = FileToken("2024-03-15", "Sutter_Health-East Bay", "Follow-up", 90, "pdf")
	assert.Equal(t, "2024-03-15_SutterHealthEast_Bay_Followup_$90.00.pdf", token)

	// Undated documents fall back to today, so only the shape is stable.
	assert.Contains(t, FileToken("", "CVS", "Rx", 1, "jpg"), "_CVS_Rx_$1.00.jpg")
}
