package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MWebhookEvents           MetricKey = "webhook_events_total"
	MStockConflicts          MetricKey = "stock_conflicts_total"
	MCatalogOrphans          MetricKey = "catalog_orphans_total"
)
