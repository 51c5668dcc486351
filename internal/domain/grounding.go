package domain

// GroundingChunk is one citation attached to an assistant reply. It is either
// a WebSource or a MapSource.
type GroundingChunk interface {
	SourceURI() string
	Label() string
	isGroundingChunk()
}

type WebSource struct {
	URI   string
	Title string
}

func (w WebSource) SourceURI() string { return w.URI }

func (w WebSource) Label() string {
	if w.Title == "" {
		return "Web Source"
	}
	return w.Title
}

func (WebSource) isGroundingChunk() {}

type MapSource struct {
	URI            string
	Title          string
	ReviewSnippets []string
}

func (m MapSource) SourceURI() string { return m.URI }

func (m MapSource) Label() string {
	if m.Title == "" {
		return "Google Maps"
	}
	return m.Title
}

func (MapSource) isGroundingChunk() {}
