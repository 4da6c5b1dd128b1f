package dto

// ScenarioSummary describes one loaded scenario.
type ScenarioSummary struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Status int    `json:"status"`
	Active bool   `json:"active"`
}

// ScenarioListResponse is the body of GET /-/scenarios.
type ScenarioListResponse struct {
	Scenarios []ScenarioSummary `json:"scenarios"`
}

// ActivateScenarioRequest is the body of PUT /-/scenarios/active.
type ActivateScenarioRequest struct {
	Name string `json:"name" validate:"notempty"`
}
