// Package migrations evolves the comments database from whatever schema
// version it holds to the version this binary expects.
//
// The version lives in SQLite's PRAGMA user_version. Each step runs in its own
// transaction together with the version bump, so a failed step leaves both the
// schema and the version untouched.
package migrations

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type step struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *gorm.DB, from int) error
}

var steps = []step{
	{version: 1, name: "base schema", apply: createBaseSchema},
	{version: 2, name: "drop content type", apply: dropContentType},
	{version: 3, name: "comment identifiers", apply: addCommentIdentifiers},
}

// Latest is the schema version produced by running every step.
var Latest = len(steps)

// Migrate brings the database up to Latest.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	return MigrateTo(ctx, db, Latest, logger)
}

// MigrateTo applies the steps up to and including target. Steps at or below
// the stored version are skipped.
func MigrateTo(ctx context.Context, db *gorm.DB, target int, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	if target < 0 || target > Latest {
		return eris.Errorf("migration target %d outside supported range 0..%d", target, Latest)
	}

	logFields := logrus.Fields{"component": "migrations"}

	version, err := Version(ctx, db)
	if err != nil {
		logError(logger, logFields, err, "reading schema version failed")
		return err
	}

	if version > Latest {
		err := eris.Errorf("database schema version %d is newer than supported version %d", version, Latest)
		logError(logger, logFields, err, "refusing to migrate")
		return err
	}

	if version >= target {
		if logger != nil {
			logger.WithFields(logFields).WithField("version", version).Debug("schema up to date")
		}
		return nil
	}

	if logger != nil {
		logger.WithFields(logFields).WithFields(logrus.Fields{
			"from_version": version,
			"to_version":   target,
		}).Info("applying schema migrations")
	}

	for _, s := range steps {
		if s.version > target {
			break
		}
		if version >= s.version {
			continue
		}

		stepFields := logrus.Fields{
			"component":    "migrations",
			"step":         s.version,
			"name":         s.name,
			"from_version": version,
		}

		if err := applyStep(ctx, db, s, version); err != nil {
			logError(logger, stepFields, err, "schema migration step failed")
			return eris.Wrapf(err, "applying migration %d (%s)", s.version, s.name)
		}

		version = s.version

		if logger != nil {
			logger.WithFields(stepFields).Info("schema migration step applied")
		}
	}

	if logger != nil {
		logger.WithFields(logFields).WithField("version", version).Info("schema migration complete")
	}

	return nil
}

// Version reads the schema version recorded in the database header. A new
// database reports 0.
func Version(ctx context.Context, db *gorm.DB) (int, error) {
	if db == nil {
		return 0, eris.New("gorm DB is required")
	}

	var version int
	if err := db.WithContext(ctx).Raw("PRAGMA user_version").Scan(&version).Error; err != nil {
		return 0, eris.Wrap(err, "reading user_version pragma")
	}

	return version, nil
}

func applyStep(ctx context.Context, db *gorm.DB, s step, from int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.apply(ctx, tx, from); err != nil {
			return err
		}
		return setVersion(tx, s.version)
	})
}

func setVersion(tx *gorm.DB, version int) error {
	// PRAGMA statements do not accept bound parameters.
	if err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)).Error; err != nil {
		return eris.Wrapf(err, "setting user_version to %d", version)
	}
	return nil
}

func hasTable(tx *gorm.DB, table string) (bool, error) {
	var count int64
	err := tx.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count).Error
	if err != nil {
		return false, eris.Wrapf(err, "checking for table %s", table)
	}
	return count > 0, nil
}

func hasColumn(tx *gorm.DB, table, column string) (bool, error) {
	var count int64
	err := tx.Raw("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&count).Error
	if err != nil {
		return false, eris.Wrapf(err, "checking for column %s.%s", table, column)
	}
	return count > 0, nil
}

func logError(logger *logrus.Logger, fields logrus.Fields, err error, message string) {
	if logger == nil || err == nil {
		return
	}
	logger.WithFields(fields).WithField("error", err.Error()).Error(message)
}
