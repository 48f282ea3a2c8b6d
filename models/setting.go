package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting holds per user preferences for one company and fiscal year.
type Setting struct {
	ID           int       `gorm:"primary_key" json:"id"`
	CompanyId    int       `gorm:"uniqueIndex:idx_setting_scope;not null" json:"company_id"`
	UserId       int       `gorm:"uniqueIndex:idx_setting_scope;not null" json:"user_id"`
	FiscalYearId int       `gorm:"uniqueIndex:idx_setting_scope;not null" json:"fiscal_year_id"`
	AutoRoundOff bool      `gorm:"not null;default:false" json:"auto_round_off"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSetting struct {
	AutoRoundOff bool `json:"auto_round_off"`
}

// SettingsProvider answers setting lookups for a request.
type SettingsProvider interface {
	AutoRoundOff(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext) (bool, error)
}

// DBSettings reads settings from the database through the Redis cache.
type DBSettings struct{}

func settingKey(rc appctx.RequestContext) string {
	return fmt.Sprintf("%d:%d:%d", rc.CompanyId, rc.UserId, rc.FiscalYearId)
}

func (DBSettings) AutoRoundOff(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext) (bool, error) {
	key := settingKey(rc)
	cached, err := utils.RetrieveRedis[Setting](key)
	if err != nil {
		config.LogError(config.GetLogger(), "models", "DBSettings.AutoRoundOff", "reading setting cache", key, err)
	}
	if cached != nil {
		return cached.AutoRoundOff, nil
	}

	var s Setting
	err = tx.WithContext(ctx).
		Where("company_id = ? AND user_id = ? AND fiscal_year_id = ?", rc.CompanyId, rc.UserId, rc.FiscalYearId).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return config.DefaultAutoRoundOff(), nil
	}
	if err != nil {
		return false, err
	}
	if err := utils.StoreRedis(&s, key); err != nil {
		config.LogError(config.GetLogger(), "models", "DBSettings.AutoRoundOff", "writing setting cache", key, err)
	}
	return s.AutoRoundOff, nil
}

// SaveSetting upserts the setting of the request's user and drops the cached copy.
func SaveSetting(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext, input *NewSetting) (*Setting, error) {
	s := Setting{
		CompanyId:    rc.CompanyId,
		UserId:       rc.UserId,
		FiscalYearId: rc.FiscalYearId,
		AutoRoundOff: input.AutoRoundOff,
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "user_id"}, {Name: "fiscal_year_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"auto_round_off", "updated_at"}),
	}).Create(&s).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Setting](settingKey(rc)); err != nil {
		config.LogError(config.GetLogger(), "models", "SaveSetting", "evicting setting cache", settingKey(rc), err)
	}
	return &s, nil
}
