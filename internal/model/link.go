package model

import (
	"time"
)

// Link is an affiliate short link. Everything except the counters and the
// active flag is immutable after creation: Platform is fixed from the
// resolved URL at creation time and never re-derived, and Code is the
// globally unique external key.
type Link struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	Code        string `gorm:"size:10;uniqueIndex;not null" json:"code"`
	OriginalURL string `gorm:"type:text;not null" json:"original_url"`
	ResolvedURL string `gorm:"type:text;not null" json:"resolved_url"`
	FallbackURL string `gorm:"type:text;not null" json:"fallback_url"`
	Platform    string `gorm:"size:20;not null;index" json:"platform"`

	// Product identity derived once at creation, used for de-duplication
	// and labeling. Nullable: non-product URLs carry none.
	MerchantProductID     *string `gorm:"size:100" json:"merchant_product_id"`
	MerchantProductIDType *string `gorm:"size:20" json:"merchant_product_id_type"`
	ProductSlug           *string `gorm:"size:255" json:"product_slug"`

	// AppDeeplinkURL is a precomputed native deep link. It may be stale or
	// point at a non-product path, so it is re-validated on every redirect.
	AppDeeplinkURL *string `gorm:"type:text" json:"app_deeplink_url"`

	Label       string    `gorm:"size:120" json:"label"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	TotalClicks int64     `gorm:"default:0" json:"total_clicks"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName sets the table name.
func (Link) TableName() string {
	return "links"
}
