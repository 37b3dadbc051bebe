package ledger

// Schema mirrors the canonical column contract. order_id is UNIQUE but
// nullable: SQLite treats NULLs as distinct, so placeholder rows (one per
// quiet day) coexist while a replayed order ID is rejected outright.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id TEXT UNIQUE,
	exchange_time TEXT NOT NULL,
	transaction_type TEXT,
	order_status TEXT,
	close TEXT NOT NULL,
	average_price TEXT,
	quantity INTEGER,
	total_holding INTEGER NOT NULL,
	investment TEXT NOT NULL,
	value_at_close TEXT NOT NULL,
	profit_loss TEXT NOT NULL,
	raw_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_ledger_exchange_time ON ledger(exchange_time);
`
