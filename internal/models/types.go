package models

import (
	"time"
)

// Message represents a single conversation turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chatbot represents an owner-configured chatbot record
type Chatbot struct {
	ID          string      `bson:"_id" json:"id"`
	OwnerID     string      `bson:"ownerId" json:"ownerId"`
	Name        string      `bson:"name" json:"name"`
	Description string      `bson:"description" json:"description"`
	ContextData ContextData `bson:"contextData" json:"contextData"`
	EmbedLink   string      `bson:"embedLink,omitempty" json:"embedLink,omitempty"`
	CreatedAt   time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// Session represents one end-user visit to an embedded chatbot
type Session struct {
	SessionID       string     `bson:"sessionId" json:"sessionId"`
	OwnerID         string     `bson:"ownerId" json:"ownerId"`
	ChatbotID       string     `bson:"chatbotId" json:"chatbotId"`
	SessionStart    time.Time  `bson:"sessionStart" json:"sessionStart"`
	SessionEnd      *time.Time `bson:"sessionEnd,omitempty" json:"sessionEnd,omitempty"`
	Duration        int64      `bson:"duration,omitempty" json:"duration,omitempty"`
	IPAddress       string     `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	Location        string     `bson:"location,omitempty" json:"location,omitempty"`
	UserAction      string     `bson:"userAction" json:"userAction"`
	InteractionData string     `bson:"interactionData,omitempty" json:"interactionData,omitempty"`
}

// ChatbotAnalytics aggregates session activity for one chatbot
type ChatbotAnalytics struct {
	OwnerID         string         `json:"ownerId"`
	ChatbotID       string         `json:"chatbotId"`
	TotalSessions   int            `json:"totalSessions"`
	TotalDuration   int64          `json:"totalDuration"`
	AverageDuration float64        `json:"averageDuration"`
	ActionCounts    map[string]int `json:"actionCounts"`
}
