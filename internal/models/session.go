package models

import "time"

// Session is one login lineage. Rows are never deleted; logout flips IsValid and
// stamps LogoutTime so the table doubles as an audit trail.
type Session struct {
	BaseModel

	UserID     string     `gorm:"type:uuid;not null;index" json:"userId"`
	User       *User      `gorm:"foreignKey:UserID" json:"-"`
	IsValid    bool       `gorm:"not null;default:true;index" json:"isValid"`
	LoginTime  time.Time  `gorm:"not null;index" json:"loginTime"`
	LogoutTime *time.Time `json:"logoutTime,omitempty"`
	IPAddress  string     `json:"ipAddress"`
	UserAgent  string     `json:"userAgent"`
}
