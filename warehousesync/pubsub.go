package warehousesync

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
)

const defaultRunTopic = "warehouse-sync-runs"

func runTopic() string {
	if topic := strings.TrimSpace(os.Getenv("WAREHOUSE_SYNC_RUN_TOPIC")); topic != "" {
		return topic
	}
	return defaultRunTopic
}

// PublishSyncRun queues a run for the push endpoint to pick up.
func PublishSyncRun(ctx context.Context, payload RunPayload) error {
	return config.PublishJSON(ctx, runTopic(), payload)
}

// PubSubPushEnvelope is the wrapper Google Pub/Sub puts around a push
// delivery. Message.Data is base64; the json decoder handles that for []byte.
type PubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

const runLockKey = "warehouse-sync:run"

// PubSubPushHandler consumes the run topic. A single redis lock keeps two
// deliveries from walking the inventory concurrently; when the lock is held
// the handler returns 429 so Pub/Sub redelivers later.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		handlePubSubPush(c)
	}
}

func handlePubSubPush(c *gin.Context) {
	logger := config.GetLogger()

	var envelope PubSubPushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		// Acknowledge garbage so it is not redelivered forever.
		config.LogError(logger, "warehousesync", "PubSubPushHandler", "decode envelope", nil, err)
		c.JSON(http.StatusOK, gin.H{"status": "dropped"})
		return
	}

	var payload RunPayload
	if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil || payload.RunId == 0 {
		config.LogError(logger, "warehousesync", "PubSubPushHandler", "decode payload", map[string]interface{}{
			"message_id": envelope.Message.MessageId,
		}, err)
		c.JSON(http.StatusOK, gin.H{"status": "dropped"})
		return
	}

	ctx := c.Request.Context()
	var lock *redislock.Lock
	if locker := config.GetRedisLock(); locker != nil {
		var err error
		lock, err = locker.Obtain(ctx, runLockKey, 30*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "a sync run is already in progress"})
			return
		}
		if err != nil {
			config.LogError(logger, "warehousesync", "PubSubPushHandler", "obtain run lock", nil, err)
		}
	}
	if lock != nil {
		defer lock.Release(context.Background())
	}

	if err := processSyncRun(ctx, config.GetDB(), payload); err != nil {
		config.LogError(logger, "warehousesync", "PubSubPushHandler", "process sync run", map[string]interface{}{
			"run_id": payload.RunId,
		}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "run_id": payload.RunId})
}
