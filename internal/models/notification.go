// internal/models/notification.go
package models

import "time"

type NotificationLevel string

const (
	NotificationInfo  NotificationLevel = "info"
	NotificationError NotificationLevel = "error"
)

// Notification is a user-visible message. Persistent notifications stay until the
// condition that raised them clears; transient ones are dismissible.
type Notification struct {
	ID         string            `json:"id"`
	Level      NotificationLevel `json:"level"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Persistent bool              `json:"persistent"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// GeneratedImage is the normalized result of an AI room-image request.
type GeneratedImage struct {
	ID        string    `json:"id"`
	Room      string    `json:"room,omitempty"`
	Prompt    string    `json:"prompt"`
	ImageURL  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// Suggestion is a resolved geocoding candidate for the location field.
type Suggestion struct {
	DisplayName string  `json:"displayName"`
	City        string  `json:"city"`
	State       string  `json:"state,omitempty"`
	Country     string  `json:"country"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// Label is the "City, Country" string written back into FormInput.Location.
func (s Suggestion) Label() string {
	place := s.City
	if place == "" {
		place = s.State
	}
	return place + ", " + s.Country
}
