// Package postgres implements pkg/storage on PostgreSQL (lib/pq) and provides
// the Redis and S3 clients the service shares between components.
package postgres
