package bot

import (
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database interface {
	GetAssistantProfile(name string) (*AssistantProfile, error)
	SaveAssistantProfile(p *AssistantProfile) error
	CreateLeadRecord(lr *LeadRecord) error
	Close() error
}

// AssistantProfile maps a logical profile name to the remote assistant id.
type AssistantProfile struct {
	Name        string `gorm:"primaryKey"`
	AssistantID string
	CreatedAt   time.Time
}

// LeadRecord is a local audit row for every create_lead attempt.
type LeadRecord struct {
	ID         string `gorm:"primaryKey"`
	ThreadID   string `gorm:"index"`
	RunID      string
	ToolCallID string
	Name       string
	Phone      string
	Success    bool
	Error      string
	CreatedAt  time.Time
}

var ErrProfileNotFound = errors.New("assistant profile not found")

type DB struct {
	*gorm.DB
}

func NewDB(dsn string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&AssistantProfile{}, &LeadRecord{}); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) GetAssistantProfile(name string) (*AssistantProfile, error) {
	var p AssistantProfile
	err := db.DB.Where(&AssistantProfile{Name: name}).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) SaveAssistantProfile(p *AssistantProfile) error {
	return db.DB.Save(p).Error
}

func (db *DB) CreateLeadRecord(lr *LeadRecord) error {
	return db.DB.Create(lr).Error
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
