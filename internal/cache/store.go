// Package cache persists the last known identity and market/news snapshots
// locally, so the CLI can show something immediately on startup and keep
// working offline. Cached data is display-grade only: the session manager
// always prefers a fresh server check when the network is reachable.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mpekarov/coinwatch/internal/api"
	"github.com/mpekarov/coinwatch/internal/authclient"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("cache.unsupported_dialect")

	errEmptyCacheURL       = errors.New("cache.empty_cache_url")
	errSQLiteEmptyPath     = errors.New("cache.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("cache.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("cache.unsupported_no_scheme")
)

// Store is the GORM-backed local cache.
type Store struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *Store) Driver() string {
	return store.driverLabel
}

type identityRecord struct {
	Slot        string `gorm:"column:slot;primaryKey"`
	UserID      string `gorm:"column:user_id;not null"`
	Name        string `gorm:"column:name;not null"`
	Email       string `gorm:"column:email;not null"`
	Role        string `gorm:"column:role;not null"`
	SavedAtUnix int64  `gorm:"column:saved_at_unix;not null"`
}

func (identityRecord) TableName() string {
	return "cached_identity"
}

const identitySlot = "current"

type coinRecord struct {
	CoinID            int64   `gorm:"column:coin_id;primaryKey"`
	Name              string  `gorm:"column:name;not null"`
	Symbol            string  `gorm:"column:symbol;not null"`
	Price             float64 `gorm:"column:price;not null"`
	PercentChange1H   float64 `gorm:"column:percent_change_1h;not null"`
	PercentChange24H  float64 `gorm:"column:percent_change_24h;not null"`
	PercentChange7D   float64 `gorm:"column:percent_change_7d;not null"`
	MarketCap         float64 `gorm:"column:market_cap;not null"`
	Volume24H         float64 `gorm:"column:volume_24h;not null"`
	CirculatingSupply float64 `gorm:"column:circulating_supply;not null"`
	Rank              int     `gorm:"column:rank;not null"`
	SavedAtUnix       int64   `gorm:"column:saved_at_unix;not null"`
}

func (coinRecord) TableName() string {
	return "cached_coins"
}

type tipRecord struct {
	TipID         int64  `gorm:"column:tip_id;primaryKey"`
	Title         string `gorm:"column:title;not null"`
	Description   string `gorm:"column:description;not null"`
	Category      string `gorm:"column:category;not null;default:''"`
	Image         string `gorm:"column:image;not null;default:''"`
	CreatedAtUnix int64  `gorm:"column:created_at_unix;not null"`
	SavedAtUnix   int64  `gorm:"column:saved_at_unix;not null"`
}

func (tipRecord) TableName() string {
	return "cached_tips"
}

// Open constructs a Store for the given cache URL (sqlite:// or postgres://).
func Open(ctx context.Context, cacheURL string) (*Store, error) {
	if strings.TrimSpace(cacheURL) == "" {
		return nil, fmt.Errorf("cache.open: %w", errEmptyCacheURL)
	}
	dialector, driverLabel, resolveErr := resolveDialector(cacheURL)
	if resolveErr != nil {
		return nil, resolveErr
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("cache.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&identityRecord{}, &coinRecord{}, &tipRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("cache.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &Store{db: gormDB, driverLabel: driverLabel}, nil
}

func resolveDialector(cacheURL string) (gorm.Dialector, string, error) {
	parsed, parseErr := url.Parse(cacheURL)
	if parseErr != nil {
		return nil, "", fmt.Errorf("cache.parse_url: %w", parseErr)
	}
	switch parsed.Scheme {
	case "sqlite", "sqlite3", "file":
		path := parsed.Opaque
		if path == "" {
			path = parsed.Host + parsed.Path
		}
		if strings.TrimSpace(path) == "" {
			return nil, "", fmt.Errorf("cache.sqlite: %w", errSQLiteEmptyPath)
		}
		if strings.Contains(path, "..") {
			return nil, "", fmt.Errorf("cache.sqlite: %w", errSQLiteInvalidURL)
		}
		return sqliteDialector.Open(path), "sqlite", nil
	case "postgres", "postgresql":
		return postgres.Open(cacheURL), "postgres", nil
	case "":
		return nil, "", fmt.Errorf("cache: %w", errUnsupportedNoScheme)
	default:
		return nil, "", fmt.Errorf("cache %q: %w", parsed.Scheme, ErrUnsupportedDialect)
	}
}

// SaveIdentity stores the signed-in identity.
func (store *Store) SaveIdentity(user authclient.User) error {
	record := identityRecord{
		Slot:        identitySlot,
		UserID:      user.ID,
		Name:        user.DisplayName,
		Email:       user.Email,
		Role:        string(user.Role),
		SavedAtUnix: time.Now().UTC().Unix(),
	}
	return store.db.Save(&record).Error
}

// LoadIdentity returns the cached identity, if any.
func (store *Store) LoadIdentity() (authclient.User, bool) {
	var record identityRecord
	if findErr := store.db.First(&record, "slot = ?", identitySlot).Error; findErr != nil {
		return authclient.User{}, false
	}
	return authclient.User{
		ID:          record.UserID,
		DisplayName: record.Name,
		Email:       record.Email,
		Role:        authclient.Role(record.Role),
	}, true
}

// ClearIdentity removes the cached identity.
func (store *Store) ClearIdentity() error {
	return store.db.Delete(&identityRecord{}, "slot = ?", identitySlot).Error
}

// SaveCoins replaces the cached market snapshot.
func (store *Store) SaveCoins(coins []api.Coin) error {
	now := time.Now().UTC().Unix()
	records := make([]coinRecord, 0, len(coins))
	for index, coin := range coins {
		records = append(records, coinRecord{
			CoinID:            coin.ID,
			Name:              coin.Name,
			Symbol:            coin.Symbol,
			Price:             coin.Price,
			PercentChange1H:   coin.PercentChange1H,
			PercentChange24H:  coin.PercentChange24H,
			PercentChange7D:   coin.PercentChange7D,
			MarketCap:         coin.MarketCap,
			Volume24H:         coin.Volume24H,
			CirculatingSupply: coin.CirculatingSupply,
			Rank:              index,
			SavedAtUnix:       now,
		})
	}
	if deleteErr := store.db.Where("1 = 1").Delete(&coinRecord{}).Error; deleteErr != nil {
		return deleteErr
	}
	if len(records) == 0 {
		return nil
	}
	return store.db.Create(&records).Error
}

// LoadCoins returns the cached market snapshot when it is younger than maxAge.
func (store *Store) LoadCoins(maxAge time.Duration) ([]api.Coin, bool) {
	var records []coinRecord
	if findErr := store.db.Order("rank asc").Find(&records).Error; findErr != nil || len(records) == 0 {
		return nil, false
	}
	if stale(records[0].SavedAtUnix, maxAge) {
		return nil, false
	}
	coins := make([]api.Coin, 0, len(records))
	for _, record := range records {
		coins = append(coins, api.Coin{
			ID:                record.CoinID,
			Name:              record.Name,
			Symbol:            record.Symbol,
			Price:             record.Price,
			PercentChange1H:   record.PercentChange1H,
			PercentChange24H:  record.PercentChange24H,
			PercentChange7D:   record.PercentChange7D,
			MarketCap:         record.MarketCap,
			Volume24H:         record.Volume24H,
			CirculatingSupply: record.CirculatingSupply,
		})
	}
	return coins, true
}

// SaveTips replaces the cached news snapshot.
func (store *Store) SaveTips(tips []api.Tip) error {
	now := time.Now().UTC().Unix()
	records := make([]tipRecord, 0, len(tips))
	for _, tip := range tips {
		records = append(records, tipRecord{
			TipID:         tip.ID,
			Title:         tip.Title,
			Description:   tip.Description,
			Category:      tip.Category,
			Image:         tip.Image,
			CreatedAtUnix: tip.CreatedAt.UTC().Unix(),
			SavedAtUnix:   now,
		})
	}
	if deleteErr := store.db.Where("1 = 1").Delete(&tipRecord{}).Error; deleteErr != nil {
		return deleteErr
	}
	if len(records) == 0 {
		return nil
	}
	return store.db.Create(&records).Error
}

// LoadTips returns the cached news snapshot when it is younger than maxAge.
func (store *Store) LoadTips(maxAge time.Duration) ([]api.Tip, bool) {
	var records []tipRecord
	if findErr := store.db.Order("created_at_unix desc").Find(&records).Error; findErr != nil || len(records) == 0 {
		return nil, false
	}
	if stale(records[0].SavedAtUnix, maxAge) {
		return nil, false
	}
	tips := make([]api.Tip, 0, len(records))
	for _, record := range records {
		tips = append(tips, api.Tip{
			ID:          record.TipID,
			Title:       record.Title,
			Description: record.Description,
			Category:    record.Category,
			Image:       record.Image,
			CreatedAt:   time.Unix(record.CreatedAtUnix, 0).UTC(),
			IsActive:    true,
		})
	}
	return tips, true
}

func stale(savedAtUnix int64, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return time.Now().UTC().Sub(time.Unix(savedAtUnix, 0)) > maxAge
}
