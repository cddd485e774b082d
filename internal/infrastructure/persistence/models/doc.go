// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain types to keep the domain layer free
// from ORM concerns.
//
// Key Principles:
// 1. Domain types carry no GORM tags
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Each model converts to and from its domain type
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: shared audit columns and the model list
// - rule.go: attendance rule definitions
// - shift.go: shift definitions and the employee roster
// - punch.go: raw punch records and processed results
package models
