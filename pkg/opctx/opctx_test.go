package opctx_test

import (
	"testing"

	"github.com/dbrepair/dbrepair/pkg/domain"
	"github.com/dbrepair/dbrepair/pkg/opctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScopesCurrentDBAndRoot(t *testing.T) {
	ctx := opctx.New("mydb", "/data")
	assert.Equal(t, "mydb", ctx.CurrentDB())
	assert.Equal(t, "/data", ctx.Root())
}

func TestCheckForInterruptNoopUntilRequested(t *testing.T) {
	ctx := opctx.New("mydb", "/data")
	require.NoError(t, ctx.CheckForInterrupt(false))
	ctx.RequestInterrupt()
	assert.ErrorIs(t, ctx.CheckForInterrupt(false), domain.ErrInterrupted)
	assert.ErrorIs(t, ctx.CheckForInterrupt(true), domain.ErrInterrupted)
}

func TestBackgroundOpRegistryRejectsDoubleMark(t *testing.T) {
	reg := opctx.DefaultRegistry()
	release, err := reg.MarkBackgroundOp("concurrentdb")
	require.NoError(t, err)
	defer release()

	assert.ErrorIs(t, reg.AssertNoBackgroundOp("concurrentdb"), domain.ErrRepairInProgress)
	_, err = reg.MarkBackgroundOp("concurrentdb")
	assert.ErrorIs(t, err, domain.ErrRepairInProgress)
}

func TestBackgroundOpRegistryReleaseClearsMark(t *testing.T) {
	reg := opctx.DefaultRegistry()
	release, err := reg.MarkBackgroundOp("releasedb")
	require.NoError(t, err)
	release()
	assert.NoError(t, reg.AssertNoBackgroundOp("releasedb"))
}

func TestMarkRepairInProgressRejectsSecondClaim(t *testing.T) {
	release, err := opctx.MarkRepairInProgress()
	require.NoError(t, err)
	defer release()

	_, err = opctx.MarkRepairInProgress()
	assert.ErrorIs(t, err, domain.ErrRepairInProgress)
}

func TestMarkRepairInProgressAllowsReclaimAfterRelease(t *testing.T) {
	release, err := opctx.MarkRepairInProgress()
	require.NoError(t, err)
	release()

	release2, err := opctx.MarkRepairInProgress()
	require.NoError(t, err)
	release2()
}
