package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/regnum-scraper/pkg/records"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TableName is the table the SQL sink replaces on every run.
const TableName = "register_numbers"

const insertBatchSize = 500

// Row is the table layout. Values are stored as text exactly as they appear in
// the CSV; JSON nulls become SQL NULL. The item id is stored as item_id so the
// table can keep its own surrogate key.
type Row struct {
	RowID          uint    `gorm:"primaryKey;column:row_id"`
	ItemID         *string `gorm:"column:item_id;index"`
	RegionNumberID *string `gorm:"column:region_number_id"`
	FirstLetter    *string `gorm:"column:first_letter"`
	SecondLetter   *string `gorm:"column:second_letter"`
	Number         *string `gorm:"column:number"`
	Price          *string `gorm:"column:price"`
	Currency       *string `gorm:"column:currency"`
	CityID         *string `gorm:"column:city_id"`
	Views          *string `gorm:"column:views"`
	AuthorPhone    *string `gorm:"column:author_phone"`
	AuthorName     *string `gorm:"column:author_name"`
	Description    *string `gorm:"column:description"`
	UserID         *string `gorm:"column:user_id"`
	Status         *string `gorm:"column:status"`
	DeletedAt      *string `gorm:"column:deleted_at"`
	CreatedAt      *string `gorm:"column:created_at"`
	UpdatedAt      *string `gorm:"column:updated_at"`
	RegionNumber   *string `gorm:"column:region_number"`
	RegionName     *string `gorm:"column:region_name"`
	CityName       *string `gorm:"column:city_name"`
}

// TableName implements gorm's Tabler.
func (Row) TableName() string { return TableName }

// RowFromRecord converts a flat record to a table row.
func RowFromRecord(rec records.FlatRecord) Row {
	v := func(col string) *string {
		raw, _ := rec.Get(col)
		s, ok := records.FormatValue(raw)
		if !ok {
			return nil
		}
		return &s
	}
	return Row{
		ItemID:         v(records.ColID),
		RegionNumberID: v(records.ColRegionNumberID),
		FirstLetter:    v(records.ColFirstLetter),
		SecondLetter:   v(records.ColSecondLetter),
		Number:         v(records.ColNumber),
		Price:          v(records.ColPrice),
		Currency:       v(records.ColCurrency),
		CityID:         v(records.ColCityID),
		Views:          v(records.ColViews),
		AuthorPhone:    v(records.ColAuthorPhone),
		AuthorName:     v(records.ColAuthorName),
		Description:    v(records.ColDescription),
		UserID:         v(records.ColUserID),
		Status:         v(records.ColStatus),
		DeletedAt:      v(records.ColDeletedAt),
		CreatedAt:      v(records.ColCreatedAt),
		UpdatedAt:      v(records.ColUpdatedAt),
		RegionNumber:   v(records.ColRegionNumber),
		RegionName:     v(records.ColRegionName),
		CityName:       v(records.ColCityName),
	}
}

// OpenDatabase opens a postgres database for postgres:// and postgresql://
// DSNs and a sqlite database file for anything else. gorm logs through the
// given zerolog logger at warn level.
func OpenDatabase(dsn string, logger zerolog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(&logger, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// SQLSink replaces the contents of the register_numbers table.
type SQLSink struct {
	db     *gorm.DB
	target string
}

// NewSQLSink returns a sink over an open database. target is only used in logs.
func NewSQLSink(db *gorm.DB, target string) *SQLSink {
	return &SQLSink{db: db, target: target}
}

func (s *SQLSink) Name() string   { return "sql" }
func (s *SQLSink) Target() string { return s.target + "#" + TableName }

func (s *SQLSink) Write(ctx context.Context, recs []records.FlatRecord) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&Row{}); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	rows := make([]Row, len(recs))
	for i, rec := range recs {
		rows[i] = RowFromRecord(rec)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Row{}).Error; err != nil {
			return fmt.Errorf("clear table: %w", err)
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		return nil
	})
}

// Close closes the underlying connection pool.
func (s *SQLSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
