package db

import "gorm.io/gorm"

// ForUpdate returns the row-lock suffix for the active dialect, to be
// appended to raw SELECT statements that guard read-modify-write paths.
// SQLite has no row locks and relies on its single-writer model, so the
// suffix is empty there.
func ForUpdate(tx *gorm.DB) string {
	if tx.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
