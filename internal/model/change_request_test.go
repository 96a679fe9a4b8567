package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextStatusLegalTransitions(t *testing.T) {
	cases := []struct {
		from  string
		event CREvent
		want  string
	}{
		{CRStatusDraft, CREventSubmit, CRStatusPending},
		{CRStatusDraft, CREventTerminate, CRStatusTerminated},
		{CRStatusPending, CREventStartProcessing, CRStatusProcessing},
		{CRStatusPending, CREventAssignReviewer, CRStatusUnderReview},
		{CRStatusProcessing, CREventAssignReviewer, CRStatusUnderReview},
		{CRStatusUnderReview, CREventAssignReviewer, CRStatusUnderReview},
		{CRStatusUnderReview, CREventApprove, CRStatusApproved},
		{CRStatusUnderReview, CREventRequestChange, CRStatusRequestForChange},
		{CRStatusUnderReview, CREventReject, CRStatusRejected},
		{CRStatusRequestForChange, CREventResubmit, CRStatusPending},
		{CRStatusApproved, CREventActivate, CRStatusActive},
		{CRStatusActive, CREventTerminate, CRStatusTerminated},
	}
	for _, tc := range cases {
		got, ok := NextStatus(tc.from, tc.event)
		require.True(t, ok, "%s + %s", tc.from, tc.event)
		require.Equal(t, tc.want, got)
	}
}

func TestNextStatusIllegalTransitions(t *testing.T) {
	cases := []struct {
		from  string
		event CREvent
	}{
		{CRStatusDraft, CREventApprove},
		{CRStatusDraft, CREventReject},
		{CRStatusPending, CREventApprove},
		{CRStatusApproved, CREventApprove},
		{CRStatusApproved, CREventSubmit},
		{CRStatusTerminated, CREventSubmit},
		{CRStatusTerminated, CREventTerminate},
		{CRStatusRejected, CREventResubmit},
		{"Bogus", CREventSubmit},
	}
	for _, tc := range cases {
		_, ok := NextStatus(tc.from, tc.event)
		require.False(t, ok, "%s + %s should be illegal", tc.from, tc.event)
	}
}

func TestTerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	events := []CREvent{
		CREventSubmit, CREventStartProcessing, CREventAssignReviewer, CREventApprove,
		CREventRequestChange, CREventReject, CREventResubmit, CREventActivate, CREventTerminate,
	}
	for _, status := range []string{CRStatusTerminated, CRStatusRejected} {
		for _, event := range events {
			_, ok := NextStatus(status, event)
			require.False(t, ok, "%s + %s", status, event)
		}
	}
}

func TestEditable(t *testing.T) {
	editable := map[string]bool{
		CRStatusDraft:            true,
		CRStatusRequestForChange: true,
		CRStatusPending:          false,
		CRStatusUnderReview:      false,
		CRStatusApproved:         false,
		CRStatusTerminated:       false,
	}
	for status, want := range editable {
		cr := ChangeRequest{Status: status}
		require.Equal(t, want, cr.Editable(), status)
	}
}

func TestTerminal(t *testing.T) {
	require.True(t, (&ChangeRequest{Status: CRStatusTerminated}).Terminal())
	require.True(t, (&ChangeRequest{Status: CRStatusRejected}).Terminal())
	require.False(t, (&ChangeRequest{Status: CRStatusApproved}).Terminal())
	require.False(t, (&ChangeRequest{Status: CRStatusActive}).Terminal())
}

func TestValidCRType(t *testing.T) {
	for _, typ := range []string{
		CRTypeAddScope, CRTypeExtend, CRTypeReduce, CRTypeRateChange, CRTypeIncreaseResource, CRTypeOther,
	} {
		require.True(t, ValidCRType(typ), typ)
	}
	require.False(t, ValidCRType(""))
	require.False(t, ValidCRType("Scope Add"))
}

func TestValidCRStatus(t *testing.T) {
	require.True(t, ValidCRStatus(CRStatusUnderReview))
	require.False(t, ValidCRStatus("under review")) // case sensitive
}
