/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package mock_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/showbox/events"
	"github.com/Seednode/showbox/mock"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGameShow_CardUseResolvesAfterDelay(t *testing.T) {
	r := mock.NewGameShow(250*time.Millisecond, mock.WithLogger(quiet()))

	replies := r.Handle(events.CardUse.Name(), events.CardUsePayload{PlayerID: "p1", CardType: "skip"})
	require.Len(t, replies, 1)

	assert.Equal(t, events.CardResolve.Name(), replies[0].Name)
	assert.Equal(t, 250*time.Millisecond, replies[0].Delay)
	assert.Equal(t, events.CardResolvePayload{PlayerID: "p1", CardType: "skip", Success: true}, replies[0].Payload)
}

func TestGameShow_RoundStartClearsOverlay(t *testing.T) {
	r := mock.NewGameShow(mock.DefaultCardDelay)

	replies := r.Handle(events.RoundStart.Name(), events.RoundPayload{RoundType: "speed", RoundName: "Runda 2"})
	require.Len(t, replies, 1)
	assert.Equal(t, events.OverlayUpdate.Name(), replies[0].Name)
	assert.Zero(t, replies[0].Delay)

	update, ok := replies[0].Payload.(events.OverlayUpdatePayload)
	require.True(t, ok)
	assert.True(t, update.Question.Cleared())
	assert.True(t, update.ActivePlayerID.Cleared())
	assert.False(t, update.Category.Changed())
}

func TestGameShow_QuestionShow(t *testing.T) {
	r := mock.NewGameShow(mock.DefaultCardDelay)
	q := events.Question{ID: "q1", Text: "Capital of Peru?", Category: "geo"}

	replies := r.Handle(events.QuestionShow.Name(), events.QuestionShowPayload{Question: q})
	require.Len(t, replies, 1)

	update := replies[0].Payload.(events.OverlayUpdatePayload)
	got, ok := update.Question.Get()
	require.True(t, ok)
	assert.Equal(t, q, got)

	category, _ := update.Category.Get()
	assert.Equal(t, "geo", category)
	assert.False(t, update.Difficulty.Changed())
}

func TestGameShow_PlayerActiveHighlights(t *testing.T) {
	r := mock.NewGameShow(mock.DefaultCardDelay)

	replies := r.Handle(events.PlayerActive.Name(), events.PlayerActivePayload{PlayerID: "p3"})
	require.Len(t, replies, 1)

	update := replies[0].Payload.(events.OverlayUpdatePayload)
	id, ok := update.ActivePlayerID.Get()
	require.True(t, ok)
	assert.Equal(t, "p3", id)
}

func TestResponder_UnmappedEventHasNoReplies(t *testing.T) {
	r := mock.NewGameShow(mock.DefaultCardDelay)

	assert.Empty(t, r.Handle(events.PlayerUpdate.Name(), events.PlayerUpdatePayload{}))
	assert.Empty(t, r.Handle("unknown:event", nil))
}

func TestResponder_WrongPayloadTypeHasNoReplies(t *testing.T) {
	r := mock.NewGameShow(mock.DefaultCardDelay)

	assert.Empty(t, r.Handle(events.CardUse.Name(), "not a payload"))
}

func TestResponder_PanickingRuleIsContained(t *testing.T) {
	r := mock.NewResponder([]mock.Rule{
		mock.When(events.CardUse, func(events.CardUsePayload) []mock.Reply {
			panic("boom")
		}),
	}, mock.WithLogger(quiet()))

	assert.NotPanics(t, func() {
		assert.Nil(t, r.Handle(events.CardUse.Name(), events.CardUsePayload{}))
	})
}

func TestResponder_SetAndRemove(t *testing.T) {
	r := mock.NewResponder(nil)
	assert.Empty(t, r.Events())

	r.Set(mock.When(events.PlayerUpdate, func(p events.PlayerUpdatePayload) []mock.Reply {
		return []mock.Reply{mock.Respond(events.PlayerActive, events.PlayerActivePayload{PlayerID: p.Player.ID})}
	}))
	assert.Equal(t, []events.Name{events.PlayerUpdate.Name()}, r.Events())

	replies := r.Handle(events.PlayerUpdate.Name(), events.PlayerUpdatePayload{Player: events.Player{ID: "p9"}})
	require.Len(t, replies, 1)
	assert.Equal(t, events.PlayerActivePayload{PlayerID: "p9"}, replies[0].Payload)

	r.Remove(events.PlayerUpdate.Name())
	assert.Empty(t, r.Handle(events.PlayerUpdate.Name(), events.PlayerUpdatePayload{}))
}
