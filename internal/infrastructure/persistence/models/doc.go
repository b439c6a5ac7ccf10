// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models (BaseModel, TenantModel, etc.)
// - connection.go: Integration connections and the encrypted credential table
// - mapping.go: Data mapping definitions
// - sync.go: Sync configurations, executions, locks, sequences and logs
// - conflict.go: Detected sync conflicts
// - webhook.go: Webhook channels and delivery logs
// - hub_record.go: Hub-side entity records served to sync runs
package models
