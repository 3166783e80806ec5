package model

import "time"

// A Blob is the metadata record of a binary asset.
// Its content lives in ChunkCount chunks of ChunkSize bytes, the last one possibly shorter.
type Blob struct {
	Base `json:",inline" storm:"inline"`

	Filename    string    `json:"filename"     storm:"index"`
	ContentType string    `json:"content_type"`
	Length      int64     `json:"length"`
	ChunkSize   int       `json:"chunk_size"`
	ChunkCount  int       `json:"chunk_count"`
	Checksum    string    `json:"checksum"`
	UploadDate  time.Time `json:"upload_date"`
}

// ChunksFor returns the number of chunks needed to store length bytes.
func ChunksFor(length int64, chunkSize int) int {
	if length <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((length + int64(chunkSize) - 1) / int64(chunkSize))
}
