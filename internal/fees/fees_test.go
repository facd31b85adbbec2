// ABOUTME: Tests for fee requirement, settlement, and the royalty split
// ABOUTME: Split exactness is checked across the whole royalty range

package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

func testConfig() *store.EngineConfig {
	return &store.EngineConfig{
		RequiresPayment: true,
		ColorChangeFee:  100000,
		RoyaltyPercent:  30,
	}
}

func TestRequiredOwnerIsFree(t *testing.T) {
	rec := &store.PermissionRecord{Owner: "alice"}
	assert.Zero(t, Required(rec, testConfig(), "alice"))
}

func TestRequiredPaymentDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RequiresPayment = false
	rec := &store.PermissionRecord{Owner: "alice"}
	assert.Zero(t, Required(rec, cfg, "bob"))
}

func TestRequiredDefaultFee(t *testing.T) {
	rec := &store.PermissionRecord{Owner: "alice"}
	assert.Equal(t, uint64(100000), Required(rec, testConfig(), "bob"))
}

func TestRequiredPublicFeeOverride(t *testing.T) {
	fee := uint64(250)
	rec := &store.PermissionRecord{Owner: "alice", PublicChangeFee: &fee}
	assert.Equal(t, uint64(250), Required(rec, testConfig(), "bob"))

	// Override applies even when lower than the default, including zero.
	zero := uint64(0)
	rec.PublicChangeFee = &zero
	assert.Zero(t, Required(rec, testConfig(), "bob"))
}

func TestSettleInsufficient(t *testing.T) {
	_, err := Settle(99, 100, 30)

	var insufficient *canvas.InsufficientPaymentError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint64(100), insufficient.Required)
	assert.Equal(t, uint64(99), insufficient.Sent)
}

func TestSettleExact(t *testing.T) {
	s, err := Settle(100, 100, 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), s.Required)
	assert.Equal(t, uint64(30), s.Developer)
	assert.Equal(t, uint64(70), s.Owner)
	assert.Zero(t, s.Excess)
}

func TestSettleOverpayment(t *testing.T) {
	// Only the required amount is settled; the rest is reported back.
	s, err := Settle(150, 100, 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), s.Developer)
	assert.Equal(t, uint64(70), s.Owner)
	assert.Equal(t, uint64(50), s.Excess)
}

func TestSettleZeroRequired(t *testing.T) {
	s, err := Settle(0, 0, 30)
	require.NoError(t, err)
	assert.Zero(t, s.Developer)
	assert.Zero(t, s.Owner)
}

func TestSplitExactness(t *testing.T) {
	amounts := []uint64{0, 1, 7, 99, 100, 101, 12345, 1000000, 1<<63 + 12345}

	for _, amount := range amounts {
		for p := uint8(0); p <= 100; p++ {
			developer, owner := Split(amount, p)
			assert.Equal(t, amount, developer+owner,
				"split of %d at %d%% must be exact", amount, p)
			// floor(amount * p / 100) without overflow:
			want := amount/100*uint64(p) + amount%100*uint64(p)/100
			assert.Equal(t, want, developer)
		}
	}
}

func TestSplitBoundaries(t *testing.T) {
	developer, owner := Split(1000, 0)
	assert.Zero(t, developer)
	assert.Equal(t, uint64(1000), owner)

	developer, owner = Split(1000, 100)
	assert.Equal(t, uint64(1000), developer)
	assert.Zero(t, owner)

	// Out-of-range royalty clamps to 100.
	developer, owner = Split(1000, 130)
	assert.Equal(t, uint64(1000), developer)
	assert.Zero(t, owner)
}
