package models

import "time"

// YogaSchool is a listed training provider. Schools are owned by instructor
// accounts and carry courses.
type YogaSchool struct {
	BaseModel

	Name        string `gorm:"size:300;not null;index" json:"name"`
	Slug        string `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Description string `json:"description"`
	Location    string `gorm:"size:300" json:"location"`
	Website     string `gorm:"size:500" json:"website"`

	IsActive bool `gorm:"default:true;index" json:"is_active"`

	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	Courses []Course `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE" json:"courses,omitempty"`
}

// Course is a dated training program offered by a school.
type Course struct {
	BaseModel

	SchoolID string      `gorm:"type:uuid;not null;index" json:"school_id"`
	School   *YogaSchool `gorm:"foreignKey:SchoolID" json:"-"`

	Title       string `gorm:"size:300;not null" json:"title"`
	Description string `json:"description"`

	StartsAt time.Time `gorm:"index" json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`

	// PriceCents avoids floating point money.
	PriceCents int64  `gorm:"not null;default:0" json:"price_cents"`
	Currency   string `gorm:"size:3;not null;default:INR" json:"currency"`
	Seats      int    `gorm:"not null;default:0" json:"seats"`
}

// Testimonial is member feedback about a school, held until staff approval.
type Testimonial struct {
	BaseModel

	AuthorID string `gorm:"type:uuid;not null;index" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	SchoolID string      `gorm:"type:uuid;not null;index" json:"school_id"`
	School   *YogaSchool `gorm:"foreignKey:SchoolID" json:"-"`

	Rating int    `gorm:"not null" json:"rating"`
	Body   string `gorm:"not null" json:"body"`

	IsApproved bool       `gorm:"default:false;index" json:"is_approved"`
	ApprovedAt *time.Time `json:"approved_at"`
	ApprovedBy *string    `gorm:"type:uuid" json:"approved_by"`
}
