// Package gochannel provides in-memory watermill pub/sub for single-process setups and tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// DefaultBuffer bounds how many undelivered execution requests a subscriber holds.
const DefaultBuffer = 1000

// CreateChannel returns one GoChannel used as both publisher and subscriber.
// Requests only reach executors running in the same process and are lost on
// restart; buffer <= 0 uses DefaultBuffer.
func CreateChannel(logger watermill.LoggerAdapter, buffer int64) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, logger)

	return pubSub, pubSub, nil
}

// CreateTestChannel keeps messages for late subscribers and blocks publish
// until the subscriber acks.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
