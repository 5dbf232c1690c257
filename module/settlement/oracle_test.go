package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mockmodule "github.com/dwallet-network/dwallet-node/module/mock"
	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		JitterPercent: 10,
	}
}

// TestMustGetSystemInner_RetriesTransientErrors verifies read errors are retried until the read succeeds.
func TestMustGetSystemInner_RetriesTransientErrors(t *testing.T) {
	committee := unittest.CommitteeFixture(3, 4)
	expected := unittest.SystemInnerFixture(3, committee)

	oracle := mockmodule.NewSettlementChainOracle(t)
	oracle.On("GetSystemInner", mock.Anything).Return(nil, errors.New("rpc unavailable")).Times(3)
	oracle.On("GetSystemInner", mock.Anything).Return(expected, nil).Once()

	retrying := NewRetryingOracle(unittest.Logger(), oracle, testRetryConfig())
	system, err := retrying.MustGetSystemInner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, system)
}

func TestMustGetCoordinatorInner_RetriesTransientErrors(t *testing.T) {
	expected := unittest.CoordinatorInnerFixture(3, 2)

	oracle := mockmodule.NewSettlementChainOracle(t)
	oracle.On("GetCoordinatorInner", mock.Anything).Return(nil, errors.New("rpc unavailable")).Once()
	oracle.On("GetCoordinatorInner", mock.Anything).Return(expected, nil).Once()

	retrying := NewRetryingOracle(unittest.Logger(), oracle, testRetryConfig())
	coordinator, err := retrying.MustGetCoordinatorInner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, coordinator)
}

// TestMustGetSystemInner_Cancelled verifies the unbounded retry exits when the context is cancelled.
func TestMustGetSystemInner_Cancelled(t *testing.T) {
	oracle := mockmodule.NewSettlementChainOracle(t)
	oracle.On("GetSystemInner", mock.Anything).Return(nil, errors.New("rpc unavailable"))

	retrying := NewRetryingOracle(unittest.Logger(), oracle, testRetryConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	unittest.RequireReturnsBefore(t, func() {
		_, err := retrying.MustGetSystemInner(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}, time.Second, "retry did not stop on cancellation")
}
