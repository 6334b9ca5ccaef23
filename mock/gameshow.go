/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package mock

import (
	"time"

	"github.com/Seednode/showbox/events"
)

// DefaultCardDelay is how long a simulated card takes to resolve.
const DefaultCardDelay = 500 * time.Millisecond

// GameShow returns the rules that mirror what the show server does with host
// and player events.
func GameShow(cardDelay time.Duration) []Rule {
	return []Rule{
		When(events.RoundStart, func(events.RoundPayload) []Reply {
			return []Reply{Respond(events.OverlayUpdate, events.OverlayUpdatePayload{
				Question:       events.Clear[events.Question](),
				ActivePlayerID: events.Clear[string](),
			})}
		}),

		When(events.RoundEnd, func(events.RoundPayload) []Reply {
			return []Reply{Respond(events.OverlayUpdate, events.OverlayUpdatePayload{
				Question:       events.Clear[events.Question](),
				ActivePlayerID: events.Clear[string](),
				TimeRemaining:  events.Clear[int](),
			})}
		}),

		When(events.QuestionShow, func(p events.QuestionShowPayload) []Reply {
			update := events.OverlayUpdatePayload{
				Question: events.Set(p.Question),
			}
			if p.Question.Category != "" {
				update.Category = events.Set(p.Question.Category)
			}
			if p.Question.Difficulty != "" {
				update.Difficulty = events.Set(p.Question.Difficulty)
			}
			return []Reply{Respond(events.OverlayUpdate, update)}
		}),

		When(events.CardUse, func(p events.CardUsePayload) []Reply {
			return []Reply{Respond(events.CardResolve, events.CardResolvePayload{
				PlayerID: p.PlayerID,
				CardType: p.CardType,
				Success:  true,
			}).After(cardDelay)}
		}),

		When(events.PlayerActive, func(p events.PlayerActivePayload) []Reply {
			return []Reply{Respond(events.OverlayUpdate, events.OverlayUpdatePayload{
				ActivePlayerID: events.Set(p.PlayerID),
			})}
		}),

		When(events.TimerUpdate, func(p events.TimerUpdatePayload) []Reply {
			return []Reply{Respond(events.OverlayUpdate, events.OverlayUpdatePayload{
				TimeRemaining: events.Set(p.TimeRemaining),
			})}
		}),
	}
}

// NewGameShow is NewResponder(GameShow(cardDelay), opts...).
func NewGameShow(cardDelay time.Duration, opts ...Option) *Responder {
	return NewResponder(GameShow(cardDelay), opts...)
}
