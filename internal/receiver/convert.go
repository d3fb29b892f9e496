package receiver

import (
	"fmt"
	"time"

	"github.com/mbeckert/sitepulse/pkg/models"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
)

// convertLogRecord maps one OTLP log record onto a pipeline log event.
// Record attributes become event metadata; the resource's service name
// identifies the reporting service.
func convertLogRecord(resource *resourcepb.Resource, record *logspb.LogRecord) *models.LogEvent {
	resourceAttrs := extractAttributes(resource.GetAttributes())

	severity := record.SeverityText
	if severity == "" {
		severity = severityFromNumber(record.SeverityNumber)
	}

	ts := time.Now().UTC()
	if record.TimeUnixNano > 0 {
		ts = time.Unix(0, int64(record.TimeUnixNano)).UTC()
	}

	ev := &models.LogEvent{
		Severity:  severity,
		Service:   serviceName(resourceAttrs),
		Message:   record.Body.GetStringValue(),
		Timestamp: ts,
	}

	if len(record.Attributes) > 0 {
		ev.Metadata = make(map[string]any, len(record.Attributes))
		for _, attr := range record.Attributes {
			ev.Metadata[attr.Key] = attributeValueToString(attr.Value)
		}
	}
	return ev
}

// serviceName extracts service.name from resource attributes, falling
// back to host.name, then "unknown".
func serviceName(attrs map[string]string) string {
	if name, ok := attrs["service.name"]; ok && name != "" {
		return name
	}
	if name, ok := attrs["host.name"]; ok && name != "" {
		return name
	}
	return "unknown"
}

// severityFromNumber maps the OTLP severity number ranges onto text.
func severityFromNumber(n logspb.SeverityNumber) string {
	switch {
	case n >= logspb.SeverityNumber_SEVERITY_NUMBER_FATAL:
		return "FATAL"
	case n >= logspb.SeverityNumber_SEVERITY_NUMBER_ERROR:
		return "ERROR"
	case n >= logspb.SeverityNumber_SEVERITY_NUMBER_WARN:
		return "WARN"
	case n >= logspb.SeverityNumber_SEVERITY_NUMBER_INFO:
		return "INFO"
	case n >= logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG:
		return "DEBUG"
	case n >= logspb.SeverityNumber_SEVERITY_NUMBER_TRACE:
		return "TRACE"
	default:
		return "UNSET"
	}
}

func extractAttributes(attrs []*commonpb.KeyValue) map[string]string {
	result := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		result[attr.Key] = attributeValueToString(attr.Value)
	}
	return result
}

func attributeValueToString(value *commonpb.AnyValue) string {
	if value == nil {
		return ""
	}

	switch v := value.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return v.StringValue
	case *commonpb.AnyValue_IntValue:
		return fmt.Sprintf("%d", v.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return fmt.Sprintf("%f", v.DoubleValue)
	case *commonpb.AnyValue_BoolValue:
		return fmt.Sprintf("%t", v.BoolValue)
	default:
		return fmt.Sprintf("%v", value)
	}
}
