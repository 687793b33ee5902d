package model

import "time"

// Link is a short link served by the host. Code doubles as the notifier keyword.
type Link struct {
	Code      string     `db:"code" gorm:"primaryKey;size:64"`
	URL       string     `db:"url" gorm:"type:text;not null"`
	Title     string     `db:"title" gorm:"size:255"`
	Disabled  bool       `db:"disabled" gorm:"not null;default:false"`
	ExpiresAt *time.Time `db:"expires_at" gorm:"index"`
	CreatedAt time.Time  `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `db:"updated_at" gorm:"autoUpdateTime"`
}

// Expired reports whether the link has passed its expiry at now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
