package entity_test

import (
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"

	"github.com/toriidata/filermap/pkg/entity"
)

func TestEntityKey(t *testing.T) {
	tests := []struct {
		name string
		e    entity.Entity
		want string
	}{
		{"corporate number wins", entity.Entity{CorporateNumber: "1234567890123", FilerCode: "E02144", SecurityCode: "72030"}, "1234567890123"},
		{"filer code fallback", entity.Entity{FilerCode: "E02144", SecurityCode: "72030"}, "E02144"},
		{"security code last", entity.Entity{SecurityCode: "72030"}, "72030"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.e.Key())
		})
	}
}

func TestAssignShardPins(t *testing.T) {
	e := entity.Entity{CorporateNumber: "1234567890123", FilerCode: "E02144"}
	assert.Equal(t, "J23", e.AssignShard())

	// A later identifier change never moves the shard.
	e.CorporateNumber = "9999999999999"
	e.FilerCode = "E99999"
	assert.Equal(t, "J23", e.AssignShard())
}

func TestEventDedupeKey(t *testing.T) {
	at := utc.New(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	a := entity.LifecycleEvent{EntityKey: "E02144", Kind: entity.EventListing, OccurredAt: at}
	b := entity.LifecycleEvent{EntityKey: "E02144", Kind: entity.EventListing, OccurredAt: at.Add(3 * time.Hour)}
	assert.Equal(t, a.DedupeKey(), b.DedupeKey(), "same transition on the same day dedupes")

	c := entity.LifecycleEvent{EntityKey: "E02144", Kind: entity.EventDelisting, OccurredAt: at}
	assert.NotEqual(t, a.DedupeKey(), c.DedupeKey())
}
