package models

// MediaType is the coarse content class of an uploaded file.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Valid reports whether t is one of the supported media classes.
func (t MediaType) Valid() bool {
	return t == MediaTypeImage || t == MediaTypeVideo
}

// Media records an object uploaded to the configured storage bucket.
type Media struct {
	BaseModel

	Path   string    `gorm:"not null" json:"path"`
	Name   string    `gorm:"not null" json:"name"`
	Type   MediaType `gorm:"type:varchar(16);not null" json:"type"`
	Size   int64     `gorm:"not null" json:"size"`
	UserID string    `gorm:"type:uuid;not null;index" json:"userId"`
	User   *User     `gorm:"foreignKey:UserID" json:"-"`
}
