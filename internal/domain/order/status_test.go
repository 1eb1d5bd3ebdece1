package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPendingPayment, StatusPaid, true},
		{StatusPaid, StatusProcessing, true},
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusOutForDelivery, true},
		{StatusOutForDelivery, StatusDelivered, true},
		{StatusPendingPayment, StatusCancelled, true},
		{StatusShipped, StatusReturned, true},
		{StatusPendingPayment, StatusShipped, false},
		{StatusPaid, StatusPaid, false},
		{StatusPaid, StatusPendingPayment, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPaid, false},
		{StatusReturned, StatusProcessing, false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusReturned.IsTerminal())
	assert.False(t, StatusPendingPayment.IsTerminal())
	assert.False(t, StatusOutForDelivery.IsTerminal())
}

func TestTransitionDuplicatePaid(t *testing.T) {
	o := &Order{Status: StatusPendingPayment}
	require.NoError(t, o.Transition(StatusPaid))

	err := o.Transition(StatusPaid)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, StatusPaid, o.Status)

	o.Status = StatusShipped
	assert.ErrorIs(t, o.Transition(StatusPaid), ErrAlreadyPaid)
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	o := &Order{Status: StatusPendingPayment}
	err := o.Transition(StatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPendingPayment, o.Status)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("Out for Delivery")
	require.NoError(t, err)
	assert.Equal(t, StatusOutForDelivery, s)

	_, err = ParseStatus("out for delivery")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = ParseStatus("In Transit")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}
