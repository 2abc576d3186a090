package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRow_ForeignColumnsStayEmpty(t *testing.T) {
	rec := ClaimRecord{ID: 3, Provider: "CVS", HSAEligible: true}
	header := []string{ColID, "Audit Flag", ColProvider, ColHSAEligible}

	row := rec.MarshalRow(header)
	require.Len(t, row, 4)
	assert.Equal(t, []string{"3", "", "CVS", "Yes"}, row)
}

func TestUnmarshalRow_ToleratesShortRows(t *testing.T) {
	// Legacy file written before the reimbursement columns were added.
	header := []string{ColID, ColServiceDate, ColProvider, ColPatientResponsibility}
	rec := UnmarshalRow(header, []string{"5", "2024-03-01", "Sutter Health", "$185.00"})

	assert.Equal(t, 5, rec.ID)
	assert.Equal(t, "Sutter Health", rec.Provider)
	assert.InDelta(t, 185.0, rec.PatientResponsibility, 0.001)
	assert.False(t, rec.Reimbursed)
	assert.Empty(t, rec.LinkedRecordIDs)

	short := UnmarshalRow(header, []string{"5", "2024-03-01"})
	assert.Equal(t, "", short.Provider)
}

func TestApplyPatch(t *testing.T) {
	rec := ClaimRecord{ID: 4, Provider: "Aetna", Notes: "old"}
	rec.ApplyPatch(map[string]string{
		ColNotes:           "new note",
		ColIsAuthoritative: "No",
		ColLinkedRecordIDs: "1|2",
		ColID:              "99",
		"Nonexistent":      "ignored",
	})

	assert.Equal(t, "new note", rec.Notes)
	assert.Equal(t, AuthorityNo, rec.IsAuthoritative)
	assert.Equal(t, LinkSet{1, 2}, rec.LinkedRecordIDs)
	assert.Equal(t, 4, rec.ID, "id is immutable")
	assert.Equal(t, "Aetna", rec.Provider, "unpatched fields untouched")
}

func TestFieldValue_WireForms(t *testing.T) {
	rec := ClaimRecord{
		BilledAmount:    1450,
		Reimbursed:      true,
		LinkedRecordIDs: LinkSet{11, 12},
		IsAuthoritative: AuthorityYes,
	}
	assert.Equal(t, "1450.00", rec.FieldValue(ColBilledAmount))
	assert.Equal(t, "Yes", rec.FieldValue(ColReimbursed))
	assert.Equal(t, "11|12", rec.FieldValue(ColLinkedRecordIDs))
	assert.Equal(t, "Yes", rec.FieldValue(ColIsAuthoritative))
	assert.Equal(t, "", rec.FieldValue("Unknown Column"))
}
