// Package incident provides the business boundary for Beacon's event
// ingestion and incident projection engine. It defines the Service
// (validation, dedup, notification dispatch), Projector (per-key
// read-modify-write), quality flag evaluation, the Store interface
// (persistence), and domain models.
package incident
