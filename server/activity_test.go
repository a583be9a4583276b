package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeSummary(t *testing.T) {
	cardID := int64(7)
	cases := []struct {
		name string
		ev   activityEvent
		want string
	}{
		{
			name: "card action names the card and board",
			ev: activityEvent{Action: "moved card", Username: "ana",
				CardID: &cardID, CardTitle: "Fix login", BoardTitle: "Sprint 12"},
			want: `📋 ana moved card "Fix login" in board "Sprint 12"`,
		},
		{
			name: "list action names the board",
			ev:   activityEvent{Action: "created list", Username: "bo", BoardTitle: "Sprint 12"},
			want: `📋 bo created list in board "Sprint 12"`,
		},
		{
			name: "board action names the board only",
			ev:   activityEvent{Action: "deleted board", Username: "cy", BoardTitle: "Old stuff"},
			want: `📋 cy deleted board "Old stuff"`,
		},
		{
			name: "unknown action yields nothing",
			ev:   activityEvent{Action: "logged in", Username: "dee"},
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, composeSummary(tc.ev))
		})
	}
}
