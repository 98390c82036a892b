package models

import "time"

// Kid is a child profile. Physical attribute fields are optional and
// must never be invented downstream when absent.
type Kid struct {
	ID          int64     `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"-"`
	Name        string    `db:"name" json:"name"`
	Age         int       `db:"age" json:"age"`
	Description *string   `db:"description" json:"description,omitempty"`
	HairColor   *string   `db:"hair_color" json:"hairColor,omitempty"`
	EyeColor    *string   `db:"eye_color" json:"eyeColor,omitempty"`
	HairLength  *string   `db:"hair_length" json:"hairLength,omitempty"`
	SkinTone    *string   `db:"skin_tone" json:"skinTone,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// KidAttributes carries the mutable fields of a kid profile.
type KidAttributes struct {
	Name        string  `json:"name" binding:"required"`
	Age         int     `json:"age" binding:"required,min=1,max=12"`
	Description *string `json:"description"`
	HairColor   *string `json:"hairColor"`
	EyeColor    *string `json:"eyeColor"`
	HairLength  *string `json:"hairLength"`
	SkinTone    *string `json:"skinTone"`
}

// Character is a recurring story character owned by a profile.
type Character struct {
	ID          int64     `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"-"`
	Name        string    `db:"name" json:"name"`
	Type        string    `db:"type" json:"type"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// CharacterAttributes carries the mutable fields of a character.
type CharacterAttributes struct {
	Name        string  `json:"name" binding:"required"`
	Type        string  `json:"type"`
	Description *string `json:"description"`
}

// FamilyContext is the resolved cast of one generation request: the
// selected kids and characters with their attributes, in request order.
type FamilyContext struct {
	KidNames       []string
	CharacterNames []string
	Kids           []Kid
	Characters     []Character
}
