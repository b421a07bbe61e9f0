package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InfluencerRow is the influencer_records table model.
type InfluencerRow struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	RunID          string    `gorm:"type:text;not null;index"`
	Dataset        string    `gorm:"type:text;not null;index"`
	Keyword        string    `gorm:"type:text;not null"`
	Username       string    `gorm:"type:text;not null"`
	Name           string    `gorm:"type:text"`
	Email          string    `gorm:"type:text"`
	Bio            string    `gorm:"type:text"`
	ProfileURL     string    `gorm:"column:profile_url;type:text"`
	AvatarURL      string    `gorm:"column:avatar_url;type:text"`
	FollowerCount  int       `gorm:"default:0"`
	EngagementRate float64   `gorm:"default:0"`
	Verified       bool      `gorm:"default:false"`
	LastPostAt     time.Time `gorm:"type:timestamp with time zone"`
	CollectedAt    time.Time `gorm:"type:timestamp with time zone"`
}

// TableName overrides the table name.
func (InfluencerRow) TableName() string {
	return "influencer_records"
}

// Postgres stores records in the influencer_records table.
type Postgres struct {
	name string
	db   *gorm.DB
	log  zerolog.Logger
}

// OpenPostgres connects to the database and migrates the table.
func OpenPostgres(dsn, name string, log zerolog.Logger) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dataset: dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.AutoMigrate(&InfluencerRow{}); err != nil {
		return nil, fmt.Errorf("migrate influencer_records: %w", err)
	}

	return NewPostgres(db, name, log), nil
}

// NewPostgres wraps an existing gorm connection without migrating.
func NewPostgres(db *gorm.DB, name string, log zerolog.Logger) *Postgres {
	return &Postgres{name: name, db: db, log: log}
}

func (d *Postgres) Name() string { return d.name }

// Append inserts one row.
func (d *Postgres) Append(ctx context.Context, rec Record) error {
	row := InfluencerRow{
		RunID:          rec.RunID,
		Dataset:        d.name,
		Keyword:        rec.Keyword,
		Username:       rec.Username,
		Name:           rec.Influencer.Name,
		Email:          rec.Email,
		Bio:            rec.Bio,
		ProfileURL:     rec.ProfileURL,
		AvatarURL:      rec.AvatarURL,
		FollowerCount:  rec.FollowerCount,
		EngagementRate: rec.EngagementRate,
		Verified:       rec.Verified,
		LastPostAt:     rec.LastPostAt,
		CollectedAt:    rec.CollectedAt,
	}

	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%w: insert record %q: %v", ErrAppendFailed, rec.Username, err)
	}
	d.log.Debug().Str("dataset", d.name).Str("username", rec.Username).Uint("row_id", row.ID).Msg("record inserted")
	return nil
}

func (d *Postgres) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql db: %w", err)
	}
	return sqlDB.Close()
}
