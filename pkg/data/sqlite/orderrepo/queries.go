package orderrepo

const (
	pragmaQuery = `PRAGMA journal_mode=WAL`

	createOrdersTableQuery = `
		CREATE TABLE IF NOT EXISTS tx_data (
			tx_hash TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			amount_in TEXT NOT NULL,
			amount_out TEXT NOT NULL,
			source_domain TEXT NOT NULL,
			solver_revenue INTEGER NOT NULL,
			code INTEGER NOT NULL,
			height INTEGER NOT NULL,
			filler TEXT NOT NULL DEFAULT '',
			ingestion_timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`

	createHeightIndexQuery = `CREATE INDEX IF NOT EXISTS idx_tx_data_height ON tx_data (height)`
	createSenderIndexQuery = `CREATE INDEX IF NOT EXISTS idx_tx_data_sender ON tx_data (sender)`
	createFillerIndexQuery = `CREATE INDEX IF NOT EXISTS idx_tx_data_filler ON tx_data (filler)`

	createRawTableQuery = `
		CREATE TABLE IF NOT EXISTS raw_tx_responses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tx_hash TEXT NOT NULL,
			height INTEGER NOT NULL,
			tx_response TEXT NOT NULL,
			valid BOOLEAN NOT NULL
		)`

	orderColumns = `tx_hash, sender, amount_in, amount_out, source_domain, solver_revenue,
		code, height, filler, ingestion_timestamp`

	insertOrderQuery = `INSERT INTO tx_data (` + orderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertRawQuery = `INSERT INTO raw_tx_responses (tx_hash, height, tx_response, valid) VALUES (?, ?, ?, ?)`

	maxHeightQuery = `SELECT COALESCE(MAX(height), 0) FROM tx_data`

	ordersBySenderQuery = `SELECT ` + orderColumns + ` FROM tx_data WHERE sender = ? ORDER BY height, tx_hash`

	allOrdersQuery = `SELECT ` + orderColumns + ` FROM tx_data ORDER BY height, tx_hash`

	txHashesQuery = `SELECT tx_hash FROM tx_data`

	fillerStatsQuery = `
		SELECT source_domain, COUNT(*), COALESCE(SUM(solver_revenue), 0)
		FROM tx_data
		WHERE filler = ?
		GROUP BY source_domain
		ORDER BY source_domain`
)

var schemaQueries = []string{
	pragmaQuery,
	createOrdersTableQuery,
	createHeightIndexQuery,
	createSenderIndexQuery,
	createFillerIndexQuery,
	createRawTableQuery,
}
