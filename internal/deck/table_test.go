package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/tarottimer/internal/domain"
)

func TestNewTable(t *testing.T) {
	tbl, err := NewTable(sourceDeck(78))
	require.NoError(t, err)

	assert.Equal(t, 78, tbl.Len())
	assert.Len(t, tbl.Hash(), 64)

	c, ok := tbl.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, 42, c.ID)

	_, ok = tbl.Lookup(1000)
	assert.False(t, ok)
}

func TestNewTable_Rejects(t *testing.T) {
	_, err := NewTable(sourceDeck(10))
	assert.ErrorIs(t, err, ErrInsufficientDeckSize)

	dup := append(sourceDeck(24), domain.Card{ID: 3})
	_, err = NewTable(dup)
	assert.ErrorContains(t, err, "duplicate card id 3")
}

func TestTable_GenerateMatchesPackageGenerate(t *testing.T) {
	src := sourceDeck(30)
	tbl, err := NewTable(src)
	require.NoError(t, err)

	date := domain.NewDate(2025, 10, 21)
	fromTable, err := tbl.Generate(date)
	require.NoError(t, err)
	direct, err := Generate(date, src)
	require.NoError(t, err)

	assert.Equal(t, domain.CardIDs(direct), domain.CardIDs(fromTable))
}

func TestTable_CardsIsACopy(t *testing.T) {
	tbl, err := NewTable(sourceDeck(24))
	require.NoError(t, err)

	cards := tbl.Cards()
	cards[0].ID = 999

	c, ok := tbl.Lookup(0)
	require.True(t, ok)
	assert.Equal(t, 0, c.ID)
	assert.Equal(t, 0, tbl.Cards()[0].ID)
}
