package handlers

import (
	"database/sql"

	"autoseo/internal/audit"
	"autoseo/internal/billing"
	"autoseo/internal/logging"
)

var (
	db     *sql.DB
	logger logging.Logger
	engine *billing.Engine
	runner *audit.Runner
)

// Init initializes the handlers with database, logger, billing engine and
// audit runner
func Init(database *sql.DB, log logging.Logger, billingEngine *billing.Engine, auditRunner *audit.Runner) {
	db = database
	logger = log
	engine = billingEngine
	runner = auditRunner
}
