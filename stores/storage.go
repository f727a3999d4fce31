package stores

import (
	"canvas-editor/core"
	"canvas-editor/stores/aws"
	"canvas-editor/stores/filesystem"
	"canvas-editor/stores/memory"
	"canvas-editor/stores/postgres"
	"canvas-editor/stores/sqlite"
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// GetStore picks the key-value backend from STORAGE_TYPE. Unknown or empty
// values fall back to memory.
func GetStore() core.KVStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.KVStore

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data"
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "canvas.db"
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "postgres":
		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			logrus.Fatal("DATABASE_URL environment variable must be set for postgres storage type")
		}
		pg, err := postgres.Connect(context.Background(), databaseURL)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to postgres")
		}
		store = pg
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = bucketName
		store = aws.NewStore(bucketName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
