package models

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`

	// Running lists datasets with a crawl in progress.
	Running []string `json:"running"`
}

// DatasetInfo describes one dataset in GET /api/v1/datasets.
type DatasetInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Fields      []string `json:"fields"`
	Strategy    string   `json:"strategy"`

	// Available reports whether a consolidated output exists on disk.
	Available bool `json:"available"`
}

// DatasetsResponse is the response for GET /api/v1/datasets.
type DatasetsResponse struct {
	Success  bool          `json:"success"`
	Datasets []DatasetInfo `json:"datasets"`
	Error    *ErrorDetail  `json:"error,omitempty"`
}

// RecordsResponse is the response for GET /api/v1/datasets/:name/records.
type RecordsResponse struct {
	Success bool         `json:"success"`
	Dataset string       `json:"dataset"`
	Prefix  string       `json:"prefix"`
	Total   int          `json:"total"`
	Records []Record     `json:"records"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorResponse is returned by middleware and endpoints without a richer
// response shape.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
