package domain

import "errors"

var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrDeviceUnavailable   = errors.New("device unavailable")
	ErrSendFailed          = errors.New("send failed")
	ErrTranscriptionFailed = errors.New("transcription failed")

	// Rejections: the orchestrator refused the action and nothing changed.
	ErrSessionNotReady        = errors.New("chat session not ready")
	ErrBusy                   = errors.New("another action is in progress")
	ErrEmptyInput             = errors.New("empty input")
	ErrNotRecording           = errors.New("not recording")
	ErrSessionAlreadyAttached = errors.New("chat session already attached")
)
