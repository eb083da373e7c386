package course

import "time"

type Course struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	// We store price as a string to avoid rounding errors (NUMERIC in Postgres)
	Price     string    `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListResponse is the paginated catalog response.
type ListResponse struct {
	Q        string   `json:"q,omitempty"`
	Category string   `json:"category,omitempty"`
	Limit    int      `json:"limit"`
	Offset   int      `json:"offset"`
	Items    []Course `json:"items"`
}

type CreateCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       string `json:"price"`
}
