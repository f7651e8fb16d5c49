// Package entities contains the GORM models for the tables the worker reads
// and writes. The schema is owned by the upload API; AutoMigrate exists for
// local SQLite development and tests.
package entities
