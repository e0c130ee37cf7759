package mainconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appconfig "github.com/wolfman30/booking-engine/internal/config"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	cfg := &appconfig.Config{AWSRegion: "us-west-2", AWSAccessKeyID: "test", AWSSecretAccessKey: "secret", AWSEndpointOverride: "http://localhost:4566"}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)

	dynamo := NewDynamoClient(awsCfg, cfg)
	require.NotNil(t, dynamo)
	require.NotNil(t, dynamo.Options().BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *dynamo.Options().BaseEndpoint)

	sqsClient := NewSQSClient(awsCfg, &appconfig.Config{})
	assert.Nil(t, sqsClient.Options().BaseEndpoint)
}

func TestConnectBackendsMemoryModeOpensNothing(t *testing.T) {
	b, cleanup, err := ConnectBackends(context.Background(), &appconfig.Config{UseMemoryStores: true}, logging.New("error"))
	require.NoError(t, err)
	defer cleanup()
	assert.Nil(t, b.Redis)
	assert.Nil(t, b.Postgres)
	assert.Nil(t, b.Dynamo)
}
