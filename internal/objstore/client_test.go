package objstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	bucket, key, err := ParseURI("s3://parts/inbox/bracket.step", "")
	require.NoError(t, err)
	assert.Equal(t, "parts", bucket)
	assert.Equal(t, "inbox/bracket.step", key)

	bucket, key, err = ParseURI("s3:///bracket.glb", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", bucket)
	assert.Equal(t, "bracket.glb", key)

	_, _, err = ParseURI("s3://parts", "")
	assert.Error(t, err)

	_, _, err = ParseURI("/tmp/bracket.step", "parts")
	assert.Error(t, err)
}

func TestIsURI(t *testing.T) {
	assert.True(t, IsURI("s3://b/k"))
	assert.False(t, IsURI("./model.stl"))
	assert.False(t, IsURI("S3:/b/k"))
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "", endpointURL("", true))
	assert.Equal(t, "https://minio:9000", endpointURL("minio:9000", true))
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	assert.Equal(t, "http://minio:9000", endpointURL("http://minio:9000", true))
}
