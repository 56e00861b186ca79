package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ResourceAllocation ties a fundraising resource (a sponsorship slot, a
// collection box, a gift item) to the pledge or payment that claimed it.
type ResourceAllocation struct {
	ID            int                     `gorm:"primary_key" json:"id"`
	ResourceName  string                  `gorm:"size:255;not null" json:"resource_name"`
	ReferenceType AllocationReferenceType `gorm:"size:20;index" json:"reference_type"`
	ReferenceId   *int                    `gorm:"index" json:"reference_id"`
	Status        AllocationStatus        `gorm:"size:20;not null;default:'available'" json:"status"`
	CreatedAt     time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

// deallocateResources resets every allocation tied to the given record back
// to available, inside the caller's transaction.
func deallocateResources(tx *gorm.DB, ctx context.Context, refType AllocationReferenceType, refId int) error {
	return tx.WithContext(ctx).Model(&ResourceAllocation{}).
		Where("reference_type = ? AND reference_id = ?", refType, refId).
		Updates(map[string]interface{}{
			"status":       AllocationStatusAvailable,
			"reference_id": nil,
		}).Error
}
