package vk

import "fmt"

// VK wire encoding for sex: 1 = female, 2 = male, 0 = not specified.
const (
	SexUnknown = 0
	SexFemale  = 1
	SexMale    = 2
)

// Profile is the subset of a VK user profile the bot cares about.
// Age is 0 when the birth date is hidden or incomplete; CityID is 0
// when the profile has no city set.
type Profile struct {
	ID        int64
	FirstName string
	LastName  string
	Sex       int
	Age       int
	CityID    int64
}

// Photo is one profile photo with its popularity signal.
type Photo struct {
	ID      int64
	OwnerID int64
	Likes   int
	URL     string
}

// AttachmentRef renders the photo in VK message-attachment form.
func (p Photo) AttachmentRef() string {
	return fmt.Sprintf("photo%d_%d", p.OwnerID, p.ID)
}

// City is a resolved VK city reference.
type City struct {
	ID    int64
	Title string
}

// Event is one inbound message event, normalized from the
// Bots Long Poll or Callback API payloads.
type Event struct {
	IsNewMessage bool
	ToMe         bool
	UserID       int64
	Text         string
}

// APIError is the error payload VK returns inside an otherwise
// successful HTTP response.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}
