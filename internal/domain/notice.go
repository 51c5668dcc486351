package domain

type NoticeKind string

const (
	NoticeNothingUnderstood     NoticeKind = "nothing_understood"
	NoticeTranscriptionError    NoticeKind = "transcription_error"
	NoticeMicrophoneUnavailable NoticeKind = "microphone_unavailable"
)

// Notice is a transient user-facing message that is not part of the
// conversation log.
type Notice struct {
	Kind NoticeKind
	Text string
}

var defaultNoticeText = map[NoticeKind]string{
	NoticeNothingUnderstood:     "Didn't catch that. Please try speaking again.",
	NoticeTranscriptionError:    "Error transcribing audio.",
	NoticeMicrophoneUnavailable: "Could not access microphone. Please check permissions.",
}

func NewNotice(kind NoticeKind) Notice {
	return Notice{Kind: kind, Text: defaultNoticeText[kind]}
}
