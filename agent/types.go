package main

import (
	"fmt"
	"strings"

	"github.com/imkonsowa/restaurant-qa/models"
	"github.com/imkonsowa/restaurant-qa/router"
)

const (
	MessageDebug   = "debug"
	MessageContext = "context"
	MessageChat    = "chat"
	MessageError   = "error"

	// MaxQuestionLength bounds the question accepted from clients, in bytes.
	MaxQuestionLength = 1000
)

type ProcessingResult struct {
	Err error
	Msg WebSocketsMessage
}

type WebSocketsMessage struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id"`
	Data      interface{} `json:"data"`
}

type AskRequest struct {
	Question string `json:"question"`
}

func (a *AskRequest) Validate() error {
	a.Question = strings.TrimSpace(a.Question)

	if a.Question == "" {
		return fmt.Errorf("question is required")
	}
	if len(a.Question) > MaxQuestionLength {
		return fmt.Errorf("question must be at most %d bytes", MaxQuestionLength)
	}

	return nil
}

type AskResponse struct {
	RequestID string      `json:"request_id"`
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	Path      router.Path `json:"path,omitempty"`
	Intent    string      `json:"intent,omitempty"`
	Context   string      `json:"context,omitempty"`
}

type RestaurantSummary struct {
	Name           string   `json:"name"`
	Rating         string   `json:"rating,omitempty"`
	PriceRange     string   `json:"price_range,omitempty"`
	DietaryOptions []string `json:"dietary_options,omitempty"`
	Address        string   `json:"address,omitempty"`
	MenuItems      int      `json:"menu_items"`
}

func summarize(r *models.Restaurant) RestaurantSummary {
	return RestaurantSummary{
		Name:           r.Name,
		Rating:         r.Rating,
		PriceRange:     r.PriceRange,
		DietaryOptions: r.DietaryOptions,
		Address:        r.Address,
		MenuItems:      len(r.Menu),
	}
}
