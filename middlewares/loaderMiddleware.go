package middlewares

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap the request scoped data loaders
type Loaders struct {
	AccountLoader *dataloader.Loader[int, *models.Account]
	ItemLoader    *dataloader.Loader[int, *models.Item]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	accountReader := &accountReader{db: conn}
	itemReader := &itemReader{db: conn}
	return &Loaders{
		AccountLoader: dataloader.NewBatchedLoader(accountReader.getAccounts, dataloader.WithWait[int, *models.Account](time.Millisecond)),
		ItemLoader:    dataloader.NewBatchedLoader(itemReader.getItems, dataloader.WithWait[int, *models.Item](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the loaders of the request, nil outside LoaderMiddleware.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns rows from db into dataloader results in key order; missing keys get
// nil data
func generateLoaderResults[T any](results []T, ids []int, idOf func(*T) int) []*dataloader.Result[*T] {
	resultMap := make(map[int]*T, len(results))
	for i := range results {
		resultMap[idOf(&results[i])] = &results[i]
	}
	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: resultMap[id]})
	}
	return loaderResults
}
