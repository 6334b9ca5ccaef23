/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package events

// Question is the question card shown to players and on the overlay.
type Question struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Answer     string   `json:"answer,omitempty"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Points     int      `json:"points,omitempty"`
	Options    []string `json:"options,omitempty"`
}

// Player is a contestant as seen by the screens.
type Player struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Score     int      `json:"score"`
	Lives     int      `json:"lives,omitempty"`
	Cards     []string `json:"cards,omitempty"`
	Connected bool     `json:"connected"`
}

type StatusPayload struct {
	Connected bool `json:"connected"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// RoundPayload is carried by both round:start and round:end.
type RoundPayload struct {
	RoundType string `json:"roundType"`
	RoundName string `json:"roundName"`
}

type QuestionShowPayload struct {
	Question Question `json:"question"`
}

type CardUsePayload struct {
	PlayerID string `json:"playerId"`
	CardType string `json:"cardType"`
}

type CardResolvePayload struct {
	PlayerID string `json:"playerId"`
	CardType string `json:"cardType"`
	Success  bool   `json:"success"`
}

type PlayerUpdatePayload struct {
	Player Player `json:"player"`
}

type PlayerActivePayload struct {
	PlayerID string `json:"playerId"`
}

// TimerUpdatePayload carries the seconds left on the round clock.
type TimerUpdatePayload struct {
	TimeRemaining int `json:"timeRemaining"`
}

// OverlayUpdatePayload only carries the fields that changed. A field that is
// present but cleared serializes as null.
type OverlayUpdatePayload struct {
	Question       Field[Question] `json:"question,omitzero"`
	ActivePlayerID Field[string]   `json:"activePlayerId,omitzero"`
	Category       Field[string]   `json:"category,omitzero"`
	Difficulty     Field[string]   `json:"difficulty,omitzero"`
	TimeRemaining  Field[int]      `json:"timeRemaining,omitzero"`
}
