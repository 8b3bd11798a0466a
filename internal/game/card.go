// internal/game/card.go
package game

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Rank is the face value of a non-joker card. Ace ranks high.
type Rank int

const (
	RankTwo   Rank = 2
	RankJack  Rank = 11
	RankQueen Rank = 12
	RankKing  Rank = 13
	RankAce   Rank = 14
)

// Suit is one of the four French suits. Jokers carry the zero value.
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// DeckSize is the number of cards in a fresh deck: 52 ranked cards plus one joker.
const DeckSize = 53

var suitSymbols = [...]string{"♠", "♥", "♦", "♣"}

func (s Suit) String() string {
	if s < Spades || s > Clubs {
		return "?"
	}
	return suitSymbols[s]
}

func (r Rank) String() string {
	switch r {
	case RankJack:
		return "J"
	case RankQueen:
		return "Q"
	case RankKing:
		return "K"
	case RankAce:
		return "A"
	}
	return strconv.Itoa(int(r))
}

// Card is a single playing card. Cards are never mutated once dealt.
type Card struct {
	ID    uuid.UUID `json:"id"`
	Rank  Rank      `json:"rank,omitempty"`
	Suit  Suit      `json:"suit"`
	Joker bool      `json:"joker,omitempty"`
}

func (c Card) String() string {
	if c.Joker {
		return "🃏"
	}
	return c.Rank.String() + c.Suit.String()
}

func newCard(rank Rank, suit Suit) Card {
	return Card{ID: uuid.New(), Rank: rank, Suit: suit}
}

func newJoker() Card {
	return Card{ID: uuid.New(), Joker: true}
}

// newRand returns a time-seeded source for rooms that were not given one.
func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewDeck builds the 53-card deck and shuffles it with rng.
// A nil rng falls back to a time-seeded source.
func NewDeck(rng *rand.Rand) []Card {
	if rng == nil {
		rng = newRand()
	}
	deck := make([]Card, 0, DeckSize)
	for rank := RankTwo; rank <= RankAce; rank++ {
		for suit := Spades; suit <= Clubs; suit++ {
			deck = append(deck, newCard(rank, suit))
		}
	}
	deck = append(deck, newJoker())

	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// Deal distributes the deck round-robin starting at seat 0, one card per
// seat per round, until the deck is exhausted.
func Deal(deck []Card, seats int) [][]Card {
	if seats <= 0 {
		return nil
	}
	hands := make([][]Card, seats)
	for i := range hands {
		hands[i] = make([]Card, 0, len(deck)/seats+1)
	}
	for i, c := range deck {
		hands[i%seats] = append(hands[i%seats], c)
	}
	return hands
}
