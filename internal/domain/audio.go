package domain

import "encoding/base64"

// EncodedAudio is a finalized recording in a transport-safe encoding.
type EncodedAudio struct {
	// Data is the base64 (std encoding) form of the recorded blob.
	Data     string
	MimeType string
	// Size is the length of the blob before encoding.
	Size int
}

func (a EncodedAudio) Empty() bool {
	return a.Data == ""
}

// Bytes decodes Data back into the recorded blob.
func (a EncodedAudio) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}
