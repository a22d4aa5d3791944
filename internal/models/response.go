package models

// ErrorResponse стандартное тело ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse ответ эндпоинта /health.
type HealthResponse struct {
	Status string `json:"status"`
}
