package postgres

import "staffing/common/database/schema"

var createApplicationsTable = schema.Migration{
	Version:     1,
	Description: "Create applications table",
	Up: `
		CREATE TABLE IF NOT EXISTS applications (
			id TEXT PRIMARY KEY,
			candidate_name TEXT NOT NULL DEFAULT '',
			candidate_email TEXT NOT NULL,
			candidate_phone TEXT NOT NULL DEFAULT '',
			job_id TEXT NOT NULL,
			resume_ref TEXT NOT NULL DEFAULT '',
			cover_letter TEXT NOT NULL DEFAULT '',
			submitted_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			job_status TEXT NOT NULL DEFAULT '',
			interview_date TEXT,
			interview_time TEXT,
			interview_location TEXT,
			interviewer TEXT,
			approval_notes TEXT NOT NULL DEFAULT '',
			decision_reason TEXT NOT NULL DEFAULT '',
			offered_salary NUMERIC(14, 2),
			department TEXT NOT NULL DEFAULT '',
			start_date TIMESTAMPTZ,
			hired_at TIMESTAMPTZ,
			provisioned_at TIMESTAMPTZ,
			task_status TEXT NOT NULL DEFAULT '',
			payment_status TEXT NOT NULL DEFAULT 'pending',
			total_payments NUMERIC(14, 2) NOT NULL DEFAULT 0,
			last_payment_date TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS applications_active_candidate_job
			ON applications (lower(candidate_email), job_id)
			WHERE status <> 'withdrawn';
		CREATE INDEX IF NOT EXISTS applications_candidate_email ON applications (lower(candidate_email));
		CREATE INDEX IF NOT EXISTS applications_job_status ON applications (job_id, status);
	`,
	Down: `DROP TABLE IF EXISTS applications`,
}

var createPaymentsTable = schema.Migration{
	Version:     2,
	Description: "Create payments ledger table",
	Up: `
		CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			candidate_email TEXT NOT NULL DEFAULT '',
			job_id TEXT NOT NULL,
			amount NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
			description TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			transaction_id TEXT NOT NULL UNIQUE,
			client_email TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS payments_candidate ON payments (candidate_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS payments_job ON payments (job_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS payments_client ON payments (lower(client_email), created_at DESC);
	`,
	Down: `DROP TABLE IF EXISTS payments`,
}

var createEmployeeRecordsTable = schema.Migration{
	Version:     3,
	Description: "Create employee_records table",
	Up: `
		CREATE TABLE IF NOT EXISTS employee_records (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL,
			position TEXT NOT NULL,
			status TEXT NOT NULL,
			join_date TIMESTAMPTZ NOT NULL,
			salary NUMERIC(14, 2) NOT NULL DEFAULT 0,
			application_id TEXT NOT NULL DEFAULT '',
			job_id TEXT NOT NULL DEFAULT '',
			hired_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`,
	Down: `DROP TABLE IF EXISTS employee_records`,
}

var createCollaboratorTables = schema.Migration{
	Version:     4,
	Description: "Create users, profiles and jobs tables",
	Up: `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			user_type TEXT NOT NULL DEFAULT 'candidate',
			password_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS profiles (
			email TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			user_type TEXT NOT NULL DEFAULT 'candidate',
			location TEXT NOT NULL DEFAULT '',
			skills TEXT[] NOT NULL DEFAULT '{}',
			experience TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			vacancies INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'draft'
		);
	`,
	Down: `DROP TABLE IF EXISTS jobs; DROP TABLE IF EXISTS profiles; DROP TABLE IF EXISTS users`,
}

// Migrations lists the record store schema in apply order.
var Migrations = []schema.Migration{
	createApplicationsTable,
	createPaymentsTable,
	createEmployeeRecordsTable,
	createCollaboratorTables,
}
