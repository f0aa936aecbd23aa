// Package repos is the GORM persistence layer. Every method takes a
// dbctx.Context so callers can thread an open transaction through; a nil
// Tx falls back to the repo's own handle.
package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
)

func pick(db *gorm.DB, dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = db
	}
	if dbc.Ctx != nil {
		return tx.WithContext(dbc.Ctx)
	}
	return tx
}
