package migrations

import "staffing/common/database/schema"

var CreatePaymentEventsTable = schema.Migration{
	Version:     1,
	Description: "Create payment_events table",
	Up: `
		CREATE TABLE IF NOT EXISTS payment_events (
			id UUID,
			transaction_id String,
			candidate_id String,
			candidate_email String,
			job_id String,
			client_email String,
			amount Decimal(18, 2),
			method String,
			status LowCardinality(String),
			description String,
			created_at DateTime64(3),
			PRIMARY KEY (candidate_id, id)
		) ENGINE = ReplacingMergeTree(created_at)
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (candidate_id, id)
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS payment_events`,
}

// ClickHouse lists the analytics migrations in apply order.
var ClickHouse = []schema.Migration{
	CreatePaymentEventsTable,
}
