package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"gorm.io/gorm"
)

func postingLockName(companyId int) string {
	return fmt.Sprintf("posting:%d", companyId)
}

// AcquireCompanyPostingLock serializes posting per company across instances
// using MySQL advisory locks. GET_LOCK is connection-scoped, so tx must be
// the transaction that does the posting. Other dialects have no advisory
// locks and skip it.
func AcquireCompanyPostingLock(tx *gorm.DB, companyId int) error {
	if tx.Dialector.Name() != "mysql" {
		return nil
	}
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", postingLockName(companyId)).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return apperrors.ErrConflict(fmt.Sprintf("could not acquire posting lock for company %d", companyId))
	}
	return nil
}

func ReleaseCompanyPostingLock(tx *gorm.DB, companyId int) {
	if tx.Dialector.Name() != "mysql" {
		return
	}
	var released int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", postingLockName(companyId)).Scan(&released).Error
}
