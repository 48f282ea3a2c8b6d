package utils

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

/* Redis */

func redisKey[T any](key string) string {
	return GetTypeName[T]() + ":" + key
}

// store instance under Type:$key for the cache lifespan
func StoreRedis[T any](obj *T, key string) error {
	return config.SetRedisObject(redisKey[T](key), obj, GetCacheLifespan())
}

// get from redis
// returns nil if it does not exist or redis is not connected
func RetrieveRedis[T any](key string) (*T, error) {
	var result T
	exists, err := config.GetRedisObject(redisKey[T](key), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &result, nil
}

// remove an instance, Type:$key
func RemoveRedisItem[T any](key string) error {
	return config.RemoveRedisKey(redisKey[T](key))
}
