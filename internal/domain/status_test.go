package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

func TestParseTicketStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.TicketStatus
	}{
		{"new", domain.StatusNew},
		{"In Progress", domain.StatusInProgress},
		{"in-progress", domain.StatusInProgress},
		{"COMPLETED", domain.StatusCompleted},
		{" needs_info ", domain.StatusNeedsInfo},
		{"Needs Info", domain.StatusNeedsInfo},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := domain.ParseTicketStatus(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := domain.ParseTicketStatus("closed")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestParseAffectedPortion(t *testing.T) {
	p, err := domain.ParseAffectedPortion("calibration procedure")
	require.NoError(t, err)
	assert.Equal(t, domain.PortionCalibration, p)

	p, err = domain.ParseAffectedPortion("r&i")
	require.NoError(t, err)
	assert.Equal(t, domain.PortionRemoveInstall, p)

	_, err = domain.ParseAffectedPortion("wiring")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEventKind_NotificationKind(t *testing.T) {
	assert.Equal(t, domain.NotificationNewOpportunity, domain.EventTicketCreated.NotificationKind())
	assert.Equal(t, domain.NotificationAssigned, domain.EventAssigned.NotificationKind())
	assert.Equal(t, domain.NotificationAssigned, domain.EventReassigned.NotificationKind())
	assert.Equal(t, domain.NotificationInfoRequest, domain.EventNeedsInfoRequested.NotificationKind())
	assert.Equal(t, domain.NotificationStatusChanged, domain.EventStatusChanged.NotificationKind())
}

func TestKindOf(t *testing.T) {
	assert.Nil(t, domain.KindOf(nil))
	assert.Equal(t, domain.ErrConflict, domain.KindOf(domain.ErrTicketNumberTaken))
	assert.Equal(t, domain.ErrNotFound, domain.KindOf(domain.ErrTicketNotFound))
	assert.Equal(t, domain.ErrExternalUnavailable, domain.KindOf(domain.ErrBlobUnavailable))
	assert.Equal(t, domain.ErrValidation, domain.KindOf(domain.NewValidationError("vin", "bad")))
	assert.Equal(t, domain.ErrInternal, domain.KindOf(assert.AnError))
}
