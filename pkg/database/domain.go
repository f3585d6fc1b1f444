package database

import "time"

// Connection definition sql setting
type Connection struct {
	ConnectStr string

	RetryCount    int
	RetryInterval time.Duration
}

// KafkaConnection definition kafka
type KafkaConnection struct {
	Brokers       []string
	Topic         string
	RetryCount    int
	RetryInterval time.Duration
}

func (c Connection) attempts() int {
	if c.RetryCount < 1 {
		return 1
	}
	return c.RetryCount
}
