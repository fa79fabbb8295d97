package mongo

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// appName tags connections in the server log and in Atlas monitoring.
const appName = "ironlog-backend"

// DefaultConnectTimeout applies when database.connect_timeout is unset.
const DefaultConnectTimeout = 10 * time.Second

// ConnectDB connects to MongoDB and verifies the deployment is reachable
// with a ping against the primary. timeout <= 0 means DefaultConnectTimeout.
func ConnectDB(uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetAppName(appName)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		discCtx, discCancel := context.WithTimeout(context.Background(), timeout)
		defer discCancel()
		_ = client.Disconnect(discCtx)
		return nil, err
	}

	logrus.Debug("mongo primary reachable")
	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.Disconnect(ctx)
}
