// Package postgres provides the PostgreSQL-backed job event audit store and
// the embedded schema migrations it depends on. Connections go through
// database/sql with the pgx driver.
package postgres
