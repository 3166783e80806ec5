package serializer

import (
	"github.com/mdouchement/playerdata/internal/model"
)

// Blobs returns the serialized form of the given models, as listed.
func Blobs(blobs []*model.Blob) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(blobs))

	for _, blob := range blobs {
		sl = append(sl, map[string]interface{}{
			"_id":        blob.ID,
			"filename":   blob.Filename,
			"length":     blob.Length,
			"uploadDate": blob.UploadDate,
		})
	}

	return sl
}

// Blob returns the serialized form of the given model.
func Blob(blob *model.Blob) map[string]interface{} {
	return map[string]interface{}{
		"_id":         blob.ID,
		"filename":    blob.Filename,
		"contentType": blob.ContentType,
		"chunkSize":   blob.ChunkSize,
		"length":      blob.Length,
		"uploadDate":  blob.UploadDate,
		"md5":         blob.Checksum,
	}
}
