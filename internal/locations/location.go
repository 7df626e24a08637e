// Package locations stores deduplicated geographic locations referenced
// by pageviews.
package locations

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Location is a distinct (region, country, city) combination. Fields are
// nullable; absent components stay NULL and NULL participates in identity.
type Location struct {
	ID      string  `gorm:"primaryKey" json:"id"`
	Region  *string `gorm:"index" json:"region"`
	Country *string `gorm:"index" json:"country"`
	City    *string `gorm:"index" json:"city"`
}

// Signal is the geographic hint extracted for a request. Every component
// is optional.
type Signal struct {
	Region  *string
	Country *string
	City    *string
}

// Empty reports whether no component of the signal is present.
func (s Signal) Empty() bool {
	return s.Region == nil && s.Country == nil && s.City == nil
}

// Resolve returns the id of the location matching the signal, creating a
// row when none exists. The match filters only on the components the
// signal actually carries; an entirely empty signal yields no location.
// Meant to run inside the caller's transaction.
func Resolve(tx *gorm.DB, signal Signal) (*string, error) {
	if signal.Empty() {
		return nil, nil
	}

	query := tx.Model(&Location{})
	if signal.Region != nil {
		query = query.Where("region = ?", *signal.Region)
	}
	if signal.Country != nil {
		query = query.Where("country = ?", *signal.Country)
	}
	if signal.City != nil {
		query = query.Where("city = ?", *signal.City)
	}

	var existing Location
	err := query.First(&existing).Error
	if err == nil {
		return &existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query location: %w", err)
	}

	created := Location{
		ID:      uuid.NewString(),
		Region:  signal.Region,
		Country: signal.Country,
		City:    signal.City,
	}
	if err := tx.Create(&created).Error; err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return &created.ID, nil
}
