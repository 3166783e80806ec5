package model

import (
	"fmt"
	"time"
)

// A Chunk is a fixed-size slice of a Blob content.
type Chunk struct {
	ID        string    `json:"id"         storm:"id"`
	FileID    string    `json:"file_id"    storm:"index"`
	N         int       `json:"n"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// ChunkID returns the identifier of the n-th chunk of the given blob.
func ChunkID(fileID string, n int) string {
	return fmt.Sprintf("%s-%08d", fileID, n)
}
