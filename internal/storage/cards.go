package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/commander-builder/internal/cards"
)

// CachedCard is a card row with its cache timestamps.
type CachedCard struct {
	Card        *cards.Card
	CachedAt    time.Time
	LastUpdated time.Time
}

// CardStore persists cards fetched from the card API.
type CardStore struct {
	db *DB
}

// NewCardStore creates a card store on db.
func NewCardStore(db *DB) *CardStore {
	return &CardStore{db: db}
}

const cardColumns = `id, name, type_line, mana_cost, cmc, colors, color_identity, price, image, art, cached_at, last_updated`

const upsertCard = `
	INSERT INTO cards (
		id, name, type_line, mana_cost, cmc, colors, color_identity, price, image, art, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		type_line = excluded.type_line,
		mana_cost = excluded.mana_cost,
		cmc = excluded.cmc,
		colors = excluded.colors,
		color_identity = excluded.color_identity,
		price = excluded.price,
		image = excluded.image,
		art = excluded.art,
		last_updated = excluded.last_updated
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveCard(ctx context.Context, exec execer, card *cards.Card, now time.Time) error {
	if card == nil || card.ID == "" {
		return fmt.Errorf("card must have an id")
	}
	_, err := exec.ExecContext(ctx, upsertCard,
		card.ID, card.Name, card.TypeLine, card.ManaCost, card.CMC,
		cards.JoinColors(card.Colors), cards.JoinColors(card.ColorIdentity),
		card.Price, card.Image, card.Art, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save card %s: %w", card.ID, err)
	}
	return nil
}

// SaveCard inserts or refreshes a card.
func (s *CardStore) SaveCard(ctx context.Context, card *cards.Card) error {
	return saveCard(ctx, s.db.Conn(), card, time.Now())
}

// SaveCards stores several cards in one transaction.
func (s *CardStore) SaveCards(ctx context.Context, batch []*cards.Card) error {
	if len(batch) == 0 {
		return nil
	}
	now := time.Now()
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, card := range batch {
			if err := saveCard(ctx, tx, card, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetCardByID returns a cached card, or (nil, nil) when absent.
func (s *CardStore) GetCardByID(ctx context.Context, id string) (*CachedCard, error) {
	row := s.db.Conn().QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	return scanCard(row)
}

// GetCardByName returns the most recently updated card with the given name,
// compared case-insensitively, or (nil, nil) when absent.
func (s *CardStore) GetCardByName(ctx context.Context, name string) (*CachedCard, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE name = ? COLLATE NOCASE ORDER BY last_updated DESC LIMIT 1`,
		name)
	return scanCard(row)
}

// DeleteStale removes cards last refreshed before cutoff and returns the
// number removed.
func (s *CardStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM cards WHERE last_updated < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale cards: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of cached cards.
func (s *CardStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}

func scanCard(row *sql.Row) (*CachedCard, error) {
	var (
		card                  cards.Card
		colors, identity      string
		price                 sql.NullString
		cachedAt, lastUpdated time.Time
	)
	err := row.Scan(&card.ID, &card.Name, &card.TypeLine, &card.ManaCost, &card.CMC,
		&colors, &identity, &price, &card.Image, &card.Art, &cachedAt, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan card: %w", err)
	}

	card.Colors = cards.SplitColors(colors)
	card.ColorIdentity = cards.SplitColors(identity)
	if price.Valid {
		p := price.String
		card.Price = &p
	}
	return &CachedCard{Card: &card, CachedAt: cachedAt, LastUpdated: lastUpdated}, nil
}
