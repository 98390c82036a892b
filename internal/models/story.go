package models

import "time"

// Tone selects the mood of a generated story.
type Tone string

const (
	ToneCozy      Tone = "cozy"
	ToneFunny     Tone = "funny"
	ToneAdventure Tone = "adventure"
	ToneDreamy    Tone = "dreamy"
)

// ValidTone reports whether t is one of the supported tones.
func ValidTone(t Tone) bool {
	switch t {
	case ToneCozy, ToneFunny, ToneAdventure, ToneDreamy:
		return true
	}
	return false
}

// GenerationRequest is a validated request for one story.
type GenerationRequest struct {
	KidIDs       []int64 `json:"kidIds" binding:"required,min=1"`
	CharacterIDs []int64 `json:"characterIds"`
	StoryIdea    string  `json:"storyIdea" binding:"required"`
	Tone         Tone    `json:"tone" binding:"required"`
}

// Narrative is the text half of a generated story before illustrations
// and persistence.
type Narrative struct {
	Title            string
	Parts            [3]string
	ConsistencySheet string
	ImagePrompts     []string
	RunID            string
	MessageID        string
}

// Story is a finished, persisted story.
type Story struct {
	ID           int64     `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"-"`
	Title        string    `db:"title" json:"title"`
	KidIDs       []int64   `db:"kid_ids" json:"kidIds"`
	CharacterIDs []int64   `db:"character_ids" json:"characterIds"`
	StoryPart1   string    `db:"story_part_1" json:"storyPart1"`
	StoryPart2   string    `db:"story_part_2" json:"storyPart2"`
	StoryPart3   string    `db:"story_part_3" json:"storyPart3"`
	ImageURL1    *string   `db:"image_url_1" json:"imageUrl1,omitempty"`
	ImageURL2    *string   `db:"image_url_2" json:"imageUrl2,omitempty"`
	ImageURL3    *string   `db:"image_url_3" json:"imageUrl3,omitempty"`
	Tone         Tone      `db:"tone" json:"tone"`
	RunID        *string   `db:"run_id" json:"-"`
	MessageID    *string   `db:"message_id" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Owner identifies who a profile operation acts for: a registered
// account or an anonymous guest session.
type Owner struct {
	ID    string
	Guest bool
}

// UsageReport describes the current quota position of an owner.
type UsageReport struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Unlimited bool `json:"unlimited"`
	Remaining int  `json:"remaining"`
}
