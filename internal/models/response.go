package models

type SubmitResponse struct {
	Success    bool   `json:"success"`
	RequestID  string `json:"requestId"`
	PollingURL string `json:"pollingUrl"`
}

type PollResponse struct {
	Status   string `json:"status"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
	Progress *int   `json:"progress,omitempty"`
}

type StoreResponse struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename"`
	SupabaseURL string `json:"supabaseUrl"`
	OriginalURL string `json:"originalUrl,omitempty"`
}

// GenerateResponse is the single-call variant's response: the image is
// already generated and stored by the time the request returns.
type GenerateResponse struct {
	Success     bool   `json:"success"`
	SupabaseURL string `json:"supabaseUrl"`
	Filename    string `json:"filename"`
}

type PhotoResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	FullPath  string `json:"fullPath"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Size      int64  `json:"size"`
	MimeType  string `json:"type,omitempty"`
}

type PhotosResponse struct {
	Photos []PhotoResponse `json:"photos"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
