package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/imkonsowa/restaurant-qa/models"
	"github.com/imkonsowa/restaurant-qa/router"
)

type Handler struct {
	router *router.Router
}

func NewHandler(r *router.Router) *Handler {
	return &Handler{router: r}
}

func (h *Handler) ListRestaurants() []RestaurantSummary {
	restaurants := h.router.Catalog().Restaurants()

	summaries := make([]RestaurantSummary, len(restaurants))
	for i := range restaurants {
		summaries[i] = summarize(&restaurants[i])
	}

	return summaries
}

func (h *Handler) GetRestaurant(name string) (*models.Restaurant, bool) {
	return h.router.Catalog().Find(name)
}

// Ask answers one question. Names the catalog does not know produce a
// normal answer carrying the resolution message.
func (h *Handler) Ask(ctx context.Context, requestID, question string) (*AskResponse, error) {
	response := &AskResponse{RequestID: requestID, Question: question}

	res, err := h.router.Prepare(ctx, question)

	var rerr *router.ResolutionError
	if errors.As(err, &rerr) {
		response.Answer = rerr.Error()
		response.Path = router.PathStructured
		return response, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare answer: %w", err)
	}

	answer, err := h.router.Respond(ctx, res, question, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	response.Answer = answer
	response.Path = res.Path
	response.Intent = res.Descriptor.String()
	response.Context = res.Context

	slog.Info("question answered", "request_id", requestID, "path", res.Path, "intent", res.Descriptor.Kind)

	return response, nil
}

// SearchByUserQuery streams the routing decision, the evidence context and
// then the answer. The channel is closed after a final io.EOF result.
func (h *Handler) SearchByUserQuery(ctx context.Context, requestID, input string) chan *ProcessingResult {
	resultChan := make(chan *ProcessingResult)

	go func() {
		defer close(resultChan)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		send := func(result *ProcessingResult) bool {
			select {
			case resultChan <- result:
				return true
			case <-ctx.Done():
				return false
			}
		}
		message := func(kind string, data interface{}) *ProcessingResult {
			return &ProcessingResult{Msg: WebSocketsMessage{Type: kind, RequestID: requestID, Data: data}}
		}

		res, err := h.router.Prepare(ctx, input)

		var rerr *router.ResolutionError
		if errors.As(err, &rerr) {
			if send(message(MessageChat, rerr.Error())) {
				send(&ProcessingResult{Err: io.EOF})
			}
			return
		}
		if err != nil {
			send(&ProcessingResult{Err: fmt.Errorf("failed to prepare answer: %w", err)})
			return
		}

		if !send(message(MessageDebug, map[string]interface{}{
			"path":   res.Path,
			"intent": res.Descriptor,
			"hits":   res.Hits,
		})) {
			return
		}
		if !send(message(MessageContext, res.Context)) {
			return
		}

		_, err = h.router.Respond(ctx, res, input, func(ctx context.Context, chunk []byte) error {
			if !send(message(MessageChat, string(chunk))) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			send(&ProcessingResult{Err: fmt.Errorf("response generation failed: %w", err)})
			return
		}

		send(&ProcessingResult{Err: io.EOF})
	}()

	return resultChan
}
