package persist

import (
	"testing"

	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagsSurviveJSONB(t *testing.T) {
	e := tag.New("b1", map[string]tag.Value{
		"room1":     tag.Bool(true),
		"room1.x":   tag.Number(2),
		"aux.label": tag.String("hi"),
	})
	raw, err := encodeTags(e)
	require.NoError(t, err)

	back, err := decodeTags("b1", raw)
	require.NoError(t, err)
	assert.Equal(t, "b1", back.ID())
	assert.True(t, back.Tag("room1").Truthy())
	n, ok := back.Tag("room1.x").AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 2.0, n)
	assert.Equal(t, "hi", back.Tag("aux.label").Text())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decodeTags("b1", []byte("not json"))
	assert.ErrorContains(t, err, "decode entity b1")
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrations.ReadFile("migrations/00001_entities.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "-- +goose Up")
	assert.Contains(t, string(data), "CREATE TABLE")
}
