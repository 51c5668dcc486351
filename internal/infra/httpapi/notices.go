package httpapi

import (
	"context"
	"sync"
	"time"

	"salon-assistant/internal/domain"
)

const noticeCapacity = 50

// PostedNotice is a notice with its board sequence number.
type PostedNotice struct {
	Seq    int64
	Notice domain.Notice
	At     time.Time
}

// NoticeBoard is an application.Notifier that keeps the most recent notices
// for clients to poll.
type NoticeBoard struct {
	mu      sync.Mutex
	seq     int64
	notices []PostedNotice
	now     func() time.Time
}

func NewNoticeBoard() *NoticeBoard {
	return &NoticeBoard{now: time.Now}
}

func (b *NoticeBoard) Notify(_ context.Context, notice domain.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	b.notices = append(b.notices, PostedNotice{Seq: b.seq, Notice: notice, At: b.now()})
	if over := len(b.notices) - noticeCapacity; over > 0 {
		b.notices = append([]PostedNotice(nil), b.notices[over:]...)
	}
}

// Since returns notices with a sequence number greater than seq.
func (b *NoticeBoard) Since(seq int64) []PostedNotice {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := []PostedNotice{}
	for _, n := range b.notices {
		if n.Seq > seq {
			result = append(result, n)
		}
	}
	return result
}

func (b *NoticeBoard) Last() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}
