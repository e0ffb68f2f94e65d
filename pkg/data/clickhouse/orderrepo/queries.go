package orderrepo

const orderColumns = `tx_hash, sender, amount_in, amount_out, source_domain, solver_revenue,
		code, height, filler, ingestion_timestamp`

// CreateOrdersTableQuery returns the CREATE TABLE query for the order table.
// Rows are never replaced; uniqueness of tx_hash is enforced on insert.
func CreateOrdersTableQuery(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		tx_hash String,
		sender String,
		amount_in String,
		amount_out String,
		source_domain String,
		solver_revenue Int64,
		code UInt32,
		height UInt64,
		filler String,
		ingestion_timestamp DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	ORDER BY tx_hash`
}

// CreateRawTableQuery returns the CREATE TABLE query for raw tx responses.
// id is assigned by the server and grows with insertion order.
func CreateRawTableQuery(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		id UInt64 DEFAULT generateSnowflakeID(),
		tx_hash String,
		height UInt64,
		tx_response String,
		valid Bool,
		inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
	) ENGINE = MergeTree
	ORDER BY (height, tx_hash)`
}

func insertOrderQuery(table string) string {
	return `INSERT INTO ` + table + ` (` + orderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
}

func insertRawQuery(table string) string {
	return `INSERT INTO ` + table + ` (tx_hash, height, tx_response, valid) VALUES (?, ?, ?, ?)`
}

func countByHashQuery(table string) string {
	return `SELECT count() FROM ` + table + ` WHERE tx_hash = ?`
}

func maxHeightQuery(table string) string {
	return `SELECT max(height) FROM ` + table
}

func ordersBySenderQuery(table string) string {
	return `SELECT ` + orderColumns + ` FROM ` + table + ` WHERE sender = ? ORDER BY height, tx_hash`
}

func allOrdersQuery(table string) string {
	return `SELECT ` + orderColumns + ` FROM ` + table + ` ORDER BY height, tx_hash`
}

func txHashesQuery(table string) string {
	return `SELECT DISTINCT tx_hash FROM ` + table
}

func fillerStatsQuery(table string) string {
	return `SELECT source_domain, toInt64(count()), sum(solver_revenue)
	FROM ` + table + `
	WHERE filler = ?
	GROUP BY source_domain
	ORDER BY source_domain`
}
