package game

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeckComposition(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		deck := NewDeck(rng)
		require.Len(t, deck, DeckSize)

		jokers := 0
		ranks := make(map[Rank]int)
		ids := make(map[uuid.UUID]bool)
		faces := make(map[string]bool)
		for _, c := range deck {
			ids[c.ID] = true
			if c.Joker {
				jokers++
				continue
			}
			ranks[c.Rank]++
			faces[c.String()] = true
		}

		assert.Equal(t, 1, jokers)
		assert.Len(t, ranks, 13)
		for r := RankTwo; r <= RankAce; r++ {
			assert.Equal(t, 4, ranks[r], "rank %s", r)
		}
		assert.Len(t, ids, DeckSize, "card ids must be unique")
		assert.Len(t, faces, DeckSize-1, "rank/suit combinations must be unique")
	}
}

func TestNewDeckIsShuffled(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const rounds = 5300

	// The joker should land on every position about rounds/DeckSize times.
	counts := make([]int, DeckSize)
	for i := 0; i < rounds; i++ {
		deck := NewDeck(rng)
		for pos, c := range deck {
			if c.Joker {
				counts[pos]++
			}
		}
	}
	for pos, n := range counts {
		assert.Greater(t, n, 40, "joker rarely at position %d", pos)
		assert.Less(t, n, 170, "joker too often at position %d", pos)
	}
}

func TestNewDeckNilRand(t *testing.T) {
	assert.Len(t, NewDeck(nil), DeckSize)
}

func TestDealRoundRobin(t *testing.T) {
	deck := NewDeck(rand.New(rand.NewSource(7)))
	hands := Deal(deck, 3)

	require.Len(t, hands, 3)
	assert.Len(t, hands[0], 18)
	assert.Len(t, hands[1], 18)
	assert.Len(t, hands[2], 17)

	// Seat i gets cards i, i+3, i+6, ...
	assert.Equal(t, deck[0].ID, hands[0][0].ID)
	assert.Equal(t, deck[1].ID, hands[1][0].ID)
	assert.Equal(t, deck[2].ID, hands[2][0].ID)
	assert.Equal(t, deck[3].ID, hands[0][1].ID)
	assert.Equal(t, deck[52].ID, hands[0][17].ID)
}

func TestDealNoSeats(t *testing.T) {
	assert.Nil(t, Deal(NewDeck(nil), 0))
}

func TestCardString(t *testing.T) {
	assert.Equal(t, "2♠", newCard(RankTwo, Spades).String())
	assert.Equal(t, "10♥", newCard(10, Hearts).String())
	assert.Equal(t, "A♣", newCard(RankAce, Clubs).String())
	assert.Equal(t, "Q♦", newCard(RankQueen, Diamonds).String())
	assert.Equal(t, "🃏", newJoker().String())
}
