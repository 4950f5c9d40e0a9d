package observability

const (
	MUsecaseRequests     MetricKey = "usecase_requests_total"
	MUsecaseDuration     MetricKey = "usecase_duration_seconds"
	MHTTPRequests        MetricKey = "http_requests_total"
	MHTTPRequestDuration MetricKey = "http_request_duration_seconds"
	MStockConflicts      MetricKey = "stock_version_conflicts_total"
	MPaymentRefRetries   MetricKey = "payment_reference_regenerations_total"
)
