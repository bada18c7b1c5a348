package database

import "errors"

// Store errors
var (
	ErrStoreClosed = errors.New("statistics store is closed")
	ErrQueueFull   = errors.New("statistics write queue is full")
)
