// ABOUTME: Fee calculator: required price per change, settlement validation, royalty split
// ABOUTME: Single combined-fee model; the split is exact for every amount and royalty

package fees

import (
	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

// Settlement is the outcome of accepting a payment: the required amount and
// its exact split. Excess is payment beyond the requirement; it enters no
// ledger and is the dispatcher's to refund.
type Settlement struct {
	Required  uint64 `json:"required"`
	Developer uint64 `json:"developer"`
	Owner     uint64 `json:"owner"`
	Excess    uint64 `json:"excess"`
}

// Required returns the fee the editor must attach for one change. The owner
// edits for free; when payment is disabled nobody pays; otherwise the
// position's public fee overrides the configured default.
func Required(rec *store.PermissionRecord, cfg *store.EngineConfig, editor string) uint64 {
	if editor == rec.Owner {
		return 0
	}
	if !cfg.RequiresPayment {
		return 0
	}
	if rec.PublicChangeFee != nil {
		return *rec.PublicChangeFee
	}
	return cfg.ColorChangeFee
}

// Settle validates a payment against the required fee and computes the
// split. It fails with InsufficientPaymentError when payment < required.
func Settle(payment, required uint64, royaltyPercent uint8) (Settlement, error) {
	if payment < required {
		return Settlement{}, &canvas.InsufficientPaymentError{
			Required: required,
			Sent:     payment,
		}
	}

	developer, owner := Split(required, royaltyPercent)
	return Settlement{
		Required:  required,
		Developer: developer,
		Owner:     owner,
		Excess:    payment - required,
	}, nil
}

// Split divides an amount between the platform and the tile owner:
// developer = floor(amount * royaltyPercent / 100), owner takes the rest.
// The two parts always sum to amount exactly.
func Split(amount uint64, royaltyPercent uint8) (developer, owner uint64) {
	if royaltyPercent > 100 {
		royaltyPercent = 100
	}
	developer = amount / 100 * uint64(royaltyPercent)
	developer += amount % 100 * uint64(royaltyPercent) / 100
	return developer, amount - developer
}
