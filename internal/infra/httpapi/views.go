package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"salon-assistant/internal/domain"
)

type sourceView struct {
	Kind    string   `json:"kind"`
	URI     string   `json:"uri"`
	Label   string   `json:"label"`
	Reviews []string `json:"reviews,omitempty"`
}

type messageView struct {
	ID        string       `json:"id"`
	Role      string       `json:"role"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"created_at"`
	FromVoice bool         `json:"from_voice,omitempty"`
	Sources   []sourceView `json:"sources,omitempty"`
}

type stateView struct {
	State string `json:"state"`
	Label string `json:"label,omitempty"`
	Ready bool   `json:"ready"`
}

type noticeView struct {
	Seq  int64     `json:"seq"`
	Kind string    `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type exchangeView struct {
	State    stateView     `json:"state"`
	Messages []messageView `json:"messages"`
	Notices  []noticeView  `json:"notices,omitempty"`
}

func toMessageViews(msgs []domain.Message) []messageView {
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, toMessageView(m))
	}
	return views
}

func toMessageView(m domain.Message) messageView {
	v := messageView{
		ID:        string(m.ID),
		Role:      string(m.Role),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		FromVoice: m.FromVoice,
	}
	for _, chunk := range m.GroundingChunks {
		src := sourceView{URI: chunk.SourceURI(), Label: chunk.Label()}
		switch c := chunk.(type) {
		case domain.WebSource:
			src.Kind = "web"
		case domain.MapSource:
			src.Kind = "maps"
			src.Reviews = c.ReviewSnippets
		}
		v.Sources = append(v.Sources, src)
	}
	return v
}

func toNoticeViews(posted []PostedNotice) []noticeView {
	views := make([]noticeView, 0, len(posted))
	for _, p := range posted {
		views = append(views, noticeView{Seq: p.Seq, Kind: string(p.Notice.Kind), Text: p.Notice.Text, At: p.At})
	}
	return views
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
