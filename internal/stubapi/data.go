package stubapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mpekarov/coinwatch/internal/api"
	"github.com/mpekarov/coinwatch/internal/stubapi/seed"
)

var (
	// ErrCoinNotFound indicates an unknown coin ID.
	ErrCoinNotFound = errors.New("stub.data.coin_not_found")
	// ErrTipNotFound indicates an unknown tip ID.
	ErrTipNotFound = errors.New("stub.data.tip_not_found")
	// ErrAlreadyWatched indicates a duplicate watchlist insert.
	ErrAlreadyWatched = errors.New("stub.data.already_watched")
)

// DataStore holds the stub's market rows, tips, and per-user watchlists.
type DataStore struct {
	mutex      sync.Mutex
	coins      []api.Coin
	tips       []api.Tip
	nextTipID  int64
	watchlists map[string][]int64
	clock      Clock
}

// NewDataStore loads the embedded seed dataset.
func NewDataStore(clock Clock) (*DataStore, error) {
	if clock == nil {
		clock = NewSystemClock()
	}
	store := &DataStore{watchlists: make(map[string][]int64), clock: clock}

	coinsRaw, coinsErr := seed.FS.ReadFile("coins.json")
	if coinsErr != nil {
		return nil, fmt.Errorf("stub.data.seed_coins: %w", coinsErr)
	}
	if decodeErr := json.Unmarshal(coinsRaw, &store.coins); decodeErr != nil {
		return nil, fmt.Errorf("stub.data.seed_coins: %w", decodeErr)
	}

	tipsRaw, tipsErr := seed.FS.ReadFile("tips.json")
	if tipsErr != nil {
		return nil, fmt.Errorf("stub.data.seed_tips: %w", tipsErr)
	}
	if decodeErr := json.Unmarshal(tipsRaw, &store.tips); decodeErr != nil {
		return nil, fmt.Errorf("stub.data.seed_tips: %w", decodeErr)
	}
	for _, tip := range store.tips {
		if tip.ID >= store.nextTipID {
			store.nextTipID = tip.ID + 1
		}
	}
	return store, nil
}

// ListCoins returns one page of market rows.
func (store *DataStore) ListCoins(page int, limit int) api.CoinPage {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	rows := paginate(store.coins, page, limit)
	return api.CoinPage{Page: page, Limit: limit, Total: len(store.coins), Data: rows}
}

// GetCoin returns one coin by ID.
func (store *DataStore) GetCoin(coinID int64) (api.Coin, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, coin := range store.coins {
		if coin.ID == coinID {
			return coin, nil
		}
	}
	return api.Coin{}, ErrCoinNotFound
}

// SearchCoins matches name or symbol, case-insensitively.
func (store *DataStore) SearchCoins(queryText string) []api.Coin {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	needle := strings.ToLower(strings.TrimSpace(queryText))
	var matches []api.Coin
	if needle == "" {
		return matches
	}
	for _, coin := range store.coins {
		if strings.Contains(strings.ToLower(coin.Name), needle) || strings.Contains(strings.ToLower(coin.Symbol), needle) {
			matches = append(matches, coin)
		}
	}
	return matches
}

// ListTips returns one page of tips, newest first. Inactive tips appear only
// when includeInactive is set (the admin listing).
func (store *DataStore) ListTips(page int, limit int, includeInactive bool) api.TipPage {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	visible := make([]api.Tip, 0, len(store.tips))
	for _, tip := range store.tips {
		if includeInactive || tip.IsActive {
			visible = append(visible, tip)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].CreatedAt.After(visible[j].CreatedAt) })

	rows := paginate(visible, page, limit)
	totalPages := (len(visible) + limit - 1) / limit
	return api.TipPage{Page: page, TotalPages: totalPages, TotalItems: len(visible), Limit: limit, Data: rows}
}

// GetTip returns one active tip by ID.
func (store *DataStore) GetTip(tipID int64) (api.Tip, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, tip := range store.tips {
		if tip.ID == tipID && tip.IsActive {
			return tip, nil
		}
	}
	return api.Tip{}, ErrTipNotFound
}

// CreateTip stores a new tip and returns it.
func (store *DataStore) CreateTip(draft api.TipDraft) api.Tip {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	tip := api.Tip{
		ID:          store.nextTipID,
		Title:       draft.Title,
		Description: draft.Description,
		Category:    draft.Category,
		Image:       draft.Image,
		CreatedAt:   store.clock.Now(),
		IsActive:    draft.IsActive,
	}
	store.nextTipID++
	store.tips = append(store.tips, tip)
	return tip
}

// EditTip updates an existing tip.
func (store *DataStore) EditTip(tipID int64, draft api.TipDraft) (api.Tip, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for index := range store.tips {
		if store.tips[index].ID == tipID {
			store.tips[index].Title = draft.Title
			store.tips[index].Description = draft.Description
			store.tips[index].Category = draft.Category
			store.tips[index].Image = draft.Image
			store.tips[index].IsActive = draft.IsActive
			return store.tips[index], nil
		}
	}
	return api.Tip{}, ErrTipNotFound
}

// DeleteTip removes a tip.
func (store *DataStore) DeleteTip(tipID int64) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for index := range store.tips {
		if store.tips[index].ID == tipID {
			store.tips = append(store.tips[:index], store.tips[index+1:]...)
			return nil
		}
	}
	return ErrTipNotFound
}

// Watchlist returns one page of the user's watched coins with market data.
func (store *DataStore) Watchlist(userID string, page int, limit int) api.CoinPage {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	var rows []api.Coin
	for _, coinID := range store.watchlists[userID] {
		for _, coin := range store.coins {
			if coin.ID == coinID {
				rows = append(rows, coin)
				break
			}
		}
	}
	total := len(rows)
	return api.CoinPage{Page: page, Limit: limit, Total: total, Data: paginate(rows, page, limit)}
}

// AddWatch puts a coin on the user's watchlist.
func (store *DataStore) AddWatch(userID string, coinID int64) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	known := false
	for _, coin := range store.coins {
		if coin.ID == coinID {
			known = true
			break
		}
	}
	if !known {
		return ErrCoinNotFound
	}
	for _, existing := range store.watchlists[userID] {
		if existing == coinID {
			return ErrAlreadyWatched
		}
	}
	store.watchlists[userID] = append(store.watchlists[userID], coinID)
	return nil
}

// RemoveWatch takes a coin off the user's watchlist.
func (store *DataStore) RemoveWatch(userID string, coinID int64) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entries := store.watchlists[userID]
	for index, existing := range entries {
		if existing == coinID {
			store.watchlists[userID] = append(entries[:index], entries[index+1:]...)
			return nil
		}
	}
	return ErrCoinNotFound
}

func paginate[Row any](rows []Row, page int, limit int) []Row {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(rows) {
		return nil
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
