package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/server/config"
)

func TestStorageOptions(t *testing.T) {
	var c config.Config
	c.LoadDefaults()
	c.StorageBackend = blobstore.BackendS3
	c.S3RootUser = "minio"
	c.S3RootPassword = "minio-secret"

	o := StorageOptions(&c)
	assert.Equal(t, blobstore.BackendS3, o.Backend)
	assert.Equal(t, "./data", o.LocalRoot)
	assert.Equal(t, blobstore.S3Config{
		Bucket:          "cards",
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio-secret",
		BaseEndpoint:    "http://127.0.0.1:9000/",
		UsePathStyle:    true,
	}, o.S3)
}

func TestStorageOptions_LocalOpens(t *testing.T) {
	var c config.Config
	c.LoadDefaults()
	c.UploadsDir = t.TempDir()

	store, err := blobstore.Open(t.Context(), StorageOptions(&c))
	assert.NoError(t, err)
	assert.IsType(t, &blobstore.Local{}, store)
}
