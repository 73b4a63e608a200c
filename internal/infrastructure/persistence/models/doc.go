// Package models contains the GORM persistence models for the commerce sync
// tables. They carry the column tags and table names so the domain types in
// internal/domain/commerce stay free of ORM concerns; repositories convert
// between the two.
package models
