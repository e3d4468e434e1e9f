// Package models defines the domain types shared across packages.
package models

import "time"

// Submission is the contact form payload as sent by the browser.
type Submission struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Message     string `json:"message"`
	ContactInfo string `json:"contactInfo,omitempty"`
}

// Note is a persisted submission. Notes are written once and never mutated.
type Note struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Message     string    `json:"message"`
	ContactInfo string    `json:"contact_info"`
	IPAddress   string    `json:"ip_address"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatTurn is one stateless question/answer exchange. It is never stored.
type ChatTurn struct {
	Message  string
	System   string
	Context  string
	Response string
}
