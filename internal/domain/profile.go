package domain

// Profile is the read-only projection of one directory member as served by
// the backend. All mutation is server-side; the client only re-fetches.
type Profile struct {
	ID              string   `json:"_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Location        string   `json:"location,omitempty"`
	Specialisations []string `json:"specialisation,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Telephone       string   `json:"telephone,omitempty"`
	Email           string   `json:"email,omitempty"`
	Rating          float64  `json:"rating"`
	ReviewCount     int      `json:"numReviews"`
	ProfileImage    string   `json:"profileImage,omitempty"`
	ClickCount      int      `json:"clickCount"`
}

// ProfilePage mirrors the backend listing payload:
// GET /api/profiles -> { profiles, page, pages, total }.
type ProfilePage struct {
	Profiles []Profile `json:"profiles"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
	Total    int       `json:"total"`
}

// ClickReceipt mirrors PUT /api/profile-clicks -> { success, clickCount }.
// The counter is incremented server-side; the client never sends a count.
type ClickReceipt struct {
	Success    bool `json:"success"`
	ClickCount int  `json:"clickCount"`
}

// ListQuery carries the listing parameters the backend understands.
type ListQuery struct {
	Page           int    `json:"page"`
	Limit          int    `json:"limit"`
	Location       string `json:"location,omitempty"`
	Specialisation string `json:"specialisation,omitempty"`
}

// HighlightRun is one alternating matched/unmatched fragment of a display
// string, case-preserving.
type HighlightRun struct {
	Text    string `json:"text"`
	Matched bool   `json:"matched"`
}

// SearchMatch is one ranked search hit with its presentation fragments.
type SearchMatch struct {
	Profile  Profile        `json:"profile"`
	NameRuns []HighlightRun `json:"nameRuns,omitempty"`
	Snippet  string         `json:"snippet,omitempty"`
	Score    float64        `json:"score"`
}

type SearchResponse struct {
	Query      string        `json:"query"`
	Items      []SearchMatch `json:"items"`
	TotalItems int           `json:"totalItems"`
	ElapsedMS  int64         `json:"elapsedMs"`
}
