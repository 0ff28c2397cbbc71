package database

import (
	"database/sql"
	"fmt"
	"log"
)

const schemaCatalog = `
CREATE TABLE IF NOT EXISTS schemes (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(50) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS subjects (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(50) NOT NULL UNIQUE,
    slug VARCHAR(50) NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    scheme_id BIGINT NOT NULL REFERENCES schemes(id)
);

CREATE TABLE IF NOT EXISTS levels (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(50) NOT NULL,
    sort_order SMALLINT NOT NULL DEFAULT 0,
    scheme_id BIGINT NOT NULL REFERENCES schemes(id)
);

CREATE TABLE IF NOT EXISTS towns (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(33) NOT NULL UNIQUE,
    slug VARCHAR(33) NOT NULL UNIQUE,
    county CHAR(1) NOT NULL
);
`

const schemaTutors = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    email VARCHAR(254) NOT NULL UNIQUE,
    password TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tutors (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL UNIQUE REFERENCES users(id),
    titles_before VARCHAR(20) NOT NULL DEFAULT '',
    first_name VARCHAR(20) NOT NULL DEFAULT '',
    last_name VARCHAR(20) NOT NULL DEFAULT '',
    titles_after VARCHAR(20) NOT NULL DEFAULT '',
    intro VARCHAR(200) NOT NULL DEFAULT '',
    sex CHAR(1) NOT NULL DEFAULT 'n',
    slovak BOOLEAN NOT NULL DEFAULT FALSE,
    home BOOLEAN NOT NULL DEFAULT FALSE,
    commute BOOLEAN NOT NULL DEFAULT TRUE,
    phone VARCHAR(16) UNIQUE,
    phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
    notice_any SMALLINT NOT NULL DEFAULT 0,
    notice_suited SMALLINT NOT NULL DEFAULT 1,
    notice_aimed SMALLINT NOT NULL DEFAULT 2,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    credit NUMERIC(12,2) NOT NULL DEFAULT 0,
    reference_code BIGINT UNIQUE,
    pay_later_demand_id BIGINT,
    pay_later_since TIMESTAMP WITH TIME ZONE,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_notice_modes CHECK (
        notice_any BETWEEN 0 AND 6 AND notice_suited BETWEEN 0 AND 6 AND notice_aimed BETWEEN 0 AND 6
    )
);

CREATE TABLE IF NOT EXISTS tutor_towns (
    tutor_id BIGINT NOT NULL REFERENCES tutors(id) ON DELETE CASCADE,
    town_id BIGINT NOT NULL REFERENCES towns(id),
    PRIMARY KEY (tutor_id, town_id)
);

CREATE TABLE IF NOT EXISTS tutor_teaches (
    tutor_id BIGINT NOT NULL REFERENCES tutors(id) ON DELETE CASCADE,
    subject_id BIGINT NOT NULL REFERENCES subjects(id),
    level_id BIGINT NOT NULL REFERENCES levels(id),
    price INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (tutor_id, subject_id, level_id)
);
`

const schemaDemands = `
CREATE TABLE IF NOT EXISTS demands (
    id BIGSERIAL PRIMARY KEY,
    slug CHAR(32) NOT NULL UNIQUE,
    status SMALLINT NOT NULL DEFAULT 0,
    subject_id BIGINT NOT NULL REFERENCES subjects(id),
    level_id BIGINT NOT NULL REFERENCES levels(id),
    lessons SMALLINT NOT NULL DEFAULT 0,
    students SMALLINT NOT NULL DEFAULT 0,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    email VARCHAR(254) NOT NULL,
    subject_description VARCHAR(300) NOT NULL DEFAULT '',
    time_description VARCHAR(300) NOT NULL DEFAULT '',
    commute BOOLEAN NOT NULL DEFAULT TRUE,
    sex_required CHAR(1) NOT NULL DEFAULT 'n',
    slovak BOOLEAN NOT NULL DEFAULT TRUE,
    discount SMALLINT NOT NULL DEFAULT 0,
    taken_by BIGINT REFERENCES tutors(id),
    taken_at TIMESTAMP WITH TIME ZONE,
    posted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status BETWEEN 0 AND 3),
    CONSTRAINT valid_tiers CHECK (lessons BETWEEN 0 AND 3 AND students BETWEEN 0 AND 3),
    CONSTRAINT valid_discount CHECK (discount BETWEEN 0 AND 100),
    CONSTRAINT taken_consistent CHECK ((taken_by IS NOT NULL) = (status = 2))
);

CREATE INDEX IF NOT EXISTS idx_demands_status ON demands(status);
CREATE INDEX IF NOT EXISTS idx_demands_taken_by ON demands(taken_by) WHERE taken_by IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_demands_posted_at ON demands(posted_at DESC);

CREATE TABLE IF NOT EXISTS demand_towns (
    demand_id BIGINT NOT NULL REFERENCES demands(id) ON DELETE CASCADE,
    town_id BIGINT NOT NULL REFERENCES towns(id),
    PRIMARY KEY (demand_id, town_id)
);

CREATE TABLE IF NOT EXISTS demand_targets (
    demand_id BIGINT NOT NULL REFERENCES demands(id) ON DELETE CASCADE,
    tutor_id BIGINT NOT NULL REFERENCES tutors(id),
    PRIMARY KEY (demand_id, tutor_id)
);
`

const schemaLedger = `
CREATE TABLE IF NOT EXISTS account_requests (
    id BIGSERIAL PRIMARY KEY,
    account_id VARCHAR(34) NOT NULL DEFAULT '',
    opening_balance NUMERIC(18,2) NOT NULL DEFAULT 0,
    closing_balance NUMERIC(18,2) NOT NULL DEFAULT 0,
    date_start DATE,
    date_end DATE,
    id_from BIGINT,
    id_to BIGINT,
    id_last_download BIGINT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bank_transactions (
    id BIGINT PRIMARY KEY,
    account_request_id BIGINT NOT NULL REFERENCES account_requests(id),
    date DATE,
    amount NUMERIC(18,2) NOT NULL,
    currency CHAR(3) NOT NULL DEFAULT '',
    counterparty VARCHAR(255) NOT NULL DEFAULT '',
    counterparty_name VARCHAR(255) NOT NULL DEFAULT '',
    bank_code VARCHAR(10) NOT NULL DEFAULT '',
    bank_name VARCHAR(255) NOT NULL DEFAULT '',
    constant_symbol VARCHAR(10) NOT NULL DEFAULT '',
    variable_symbol VARCHAR(10) NOT NULL DEFAULT '',
    specific_symbol VARCHAR(10) NOT NULL DEFAULT '',
    user_identification VARCHAR(255) NOT NULL DEFAULT '',
    message VARCHAR(140) NOT NULL DEFAULT '',
    transaction_type VARCHAR(255) NOT NULL DEFAULT '',
    author VARCHAR(50) NOT NULL DEFAULT '',
    specification VARCHAR(255) NOT NULL DEFAULT '',
    comment VARCHAR(255) NOT NULL DEFAULT '',
    bic VARCHAR(11) NOT NULL DEFAULT '',
    command_id BIGINT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_bank_transactions_vs ON bank_transactions(variable_symbol);

CREATE TABLE IF NOT EXISTS ledger_entries (
    id BIGSERIAL PRIMARY KEY,
    entry_type VARCHAR(20) NOT NULL,
    tutor_id BIGINT NOT NULL REFERENCES tutors(id),
    amount NUMERIC(12,2) NOT NULL,
    opening_balance NUMERIC(12,2) NOT NULL,
    closing_balance NUMERIC(12,2) NOT NULL,
    bank_transaction_id BIGINT UNIQUE REFERENCES bank_transactions(id),
    demand_id BIGINT UNIQUE REFERENCES demands(id),
    reason VARCHAR(100) NOT NULL DEFAULT '',
    comment VARCHAR(140) NOT NULL DEFAULT '',
    pay_later BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_entry_type CHECK (entry_type IN ('credit_topup', 'debit_demand', 'manual_return')),
    CONSTRAINT balance_chain CHECK (closing_balance = opening_balance + amount),
    CONSTRAINT valid_links CHECK (
        (entry_type = 'credit_topup' AND bank_transaction_id IS NOT NULL AND demand_id IS NULL) OR
        (entry_type = 'debit_demand' AND demand_id IS NOT NULL AND bank_transaction_id IS NULL) OR
        (entry_type = 'manual_return' AND demand_id IS NULL AND bank_transaction_id IS NULL AND reason <> '')
    )
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_tutor ON ledger_entries(tutor_id, id);

CREATE TABLE IF NOT EXISTS sync_cursor (
    id SMALLINT PRIMARY KEY DEFAULT 1,
    last_id BIGINT NOT NULL,
    last_poll_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT single_row CHECK (id = 1)
);
`

var migrations = []struct {
	name string
	sql  string
}{
	{"001_catalog", schemaCatalog},
	{"002_tutors", schemaTutors},
	{"003_demands", schemaDemands},
	{"004_ledger", schemaLedger},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		log.Printf("[DB] Migration %s applied", m.name)
	}
	return nil
}
