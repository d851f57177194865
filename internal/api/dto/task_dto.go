package dto

type CreateTaskResponse struct {
	ProcessingID string `json:"processing_id"`
	StatusURL    string `json:"status_url"`
	Message      string `json:"message"`
}

type StatusResponse struct {
	ProcessingID string `json:"processing_id"`
	Status       string `json:"status"`
	DownloadURL  string `json:"download_url,omitempty"`
	Error        string `json:"error,omitempty"`
	EmailStatus  string `json:"email_status,omitempty"`
}
