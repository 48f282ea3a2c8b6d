package utils

import (
	"errors"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

// NotFoundOr turns gorm's record-not-found into a NotFound error for
// resource/id and passes every other error through.
func NotFoundOr(err error, resource string, id int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrorRecordNotFound) {
		return apperrors.ErrNotFoundWithID(resource, id)
	}
	return err
}
