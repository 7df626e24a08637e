package pageviews

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// Pageview is the raw unit of record. One row covers a visitor's whole
// stay on a page: follow-up pings and the exit beacon fold into the row
// instead of creating new ones.
type Pageview struct {
	ID               string    `gorm:"primaryKey"`
	SiteID           string    `gorm:"index;not null"`
	Hostname         string    `gorm:"index;not null"`
	Pathname         string    `gorm:"index;not null"`
	VisitorSignature string    `gorm:"index;size:64;not null"`
	ReferrerHostname *string   `gorm:"index"`
	ReferrerPathname *string
	ScreenSize       *string
	Browser          string  `gorm:"index"`
	OperatingSystem  string  `gorm:"index"`
	Duration         int     `gorm:"not null;default:0"`
	LocationID       *string `gorm:"index"`
	HasExited        bool    `gorm:"not null;default:false"`
	DedupHash        string  `gorm:"index;size:32;not null"`
	CreatedAt        time.Time `gorm:"index"`
}

// DedupHash identifies the (site, visitor, page, exited) combination a
// row represents. The exited flag is part of the identity: once a row is
// marked exited its hash flips and later events can no longer match it.
// Rendered as hex MD5 of the pipe-joined components, exited as "0"/"1".
func DedupHash(siteID, visitorSignature, pathname string, exited bool) string {
	exitedFlag := "0"
	if exited {
		exitedFlag = "1"
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%s|%s", siteID, visitorSignature, pathname, exitedFlag)))
	return hex.EncodeToString(sum[:])
}

// RecomputeDedupHash refreshes the stored hash after a flag change.
func (p *Pageview) RecomputeDedupHash() {
	p.DedupHash = DedupHash(p.SiteID, p.VisitorSignature, p.Pathname, p.HasExited)
}
