package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the data registry
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	tables := []string{
		createDidDocumentsTable,
		createRoleGrantsTable,
		createProducerRecordsTable,
		createHealthRecordsTable,
		createPaymentsTable,
		createBalancesTable,
		createGrantsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createDidDocumentsIndexes,
		createRoleGrantsIndexes,
		createHealthRecordsIndexes,
		createGrantsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	return nil
}

// SQL DDL statements for table creation
const (
	createDidDocumentsTable = `
		CREATE TABLE IF NOT EXISTS did_documents (
			did VARCHAR(255) PRIMARY KEY,
			subject VARCHAR(128) UNIQUE NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createRoleGrantsTable = `
		CREATE TABLE IF NOT EXISTS role_grants (
			did VARCHAR(255) NOT NULL REFERENCES did_documents(did),
			role VARCHAR(32) NOT NULL,
			granted_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (did, role)
		);`

	createProducerRecordsTable = `
		CREATE TABLE IF NOT EXISTS producer_records (
			producer VARCHAR(128) PRIMARY KEY,
			owner_did VARCHAR(255) NOT NULL,
			status SMALLINT NOT NULL DEFAULT 0,
			consent SMALLINT NOT NULL DEFAULT 0,
			nonce BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createHealthRecordsTable = `
		CREATE TABLE IF NOT EXISTS health_records (
			record_id VARCHAR(255) PRIMARY KEY,
			producer VARCHAR(128) NOT NULL REFERENCES producer_records(producer),
			signature BYTEA NOT NULL,
			resource_type VARCHAR(64) NOT NULL,
			cid VARCHAR(128) NOT NULL,
			url TEXT,
			hash VARCHAR(64) NOT NULL,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createPaymentsTable = `
		CREATE TABLE IF NOT EXISTS payments (
			record_id VARCHAR(255) PRIMARY KEY,
			consumer_did VARCHAR(255) NOT NULL,
			amount NUMERIC(78, 0) NOT NULL,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			paid_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createBalancesTable = `
		CREATE TABLE IF NOT EXISTS balances (
			account VARCHAR(128) PRIMARY KEY,
			balance NUMERIC(78, 0) NOT NULL DEFAULT 0,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createGrantsTable = `
		CREATE TABLE IF NOT EXISTS authorization_grants (
			record_id VARCHAR(255) NOT NULL,
			consumer_did VARCHAR(255) NOT NULL,
			granted BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (record_id, consumer_did)
		);`
)

// SQL DDL statements for index creation
const (
	createDidDocumentsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_did_documents_subject ON did_documents(subject);`

	createRoleGrantsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_role_grants_did ON role_grants(did);`

	createHealthRecordsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_health_records_producer ON health_records(producer);
		CREATE INDEX IF NOT EXISTS idx_health_records_verified ON health_records(is_verified);`

	createGrantsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_authorization_grants_consumer ON authorization_grants(consumer_did);`
)
