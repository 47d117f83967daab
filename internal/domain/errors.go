package domain

import "fmt"

// SourceFetchError reports one source that could not be fetched or parsed.
type SourceFetchError struct {
	SourceID string
	Err      error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// RecordValidationError reports a scraped record missing a required field.
type RecordValidationError struct {
	Key   ItemKey
	Field string
}

func (e *RecordValidationError) Error() string {
	return fmt.Sprintf("record %s: missing or invalid %s", e.Key, e.Field)
}

// StorageError wraps failures of the persisted item store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// TemplateRenderError wraps template parse and execution failures.
type TemplateRenderError struct {
	Template string
	Err      error
}

func (e *TemplateRenderError) Error() string {
	return fmt.Sprintf("render template %s: %v", e.Template, e.Err)
}

func (e *TemplateRenderError) Unwrap() error { return e.Err }

// DeliveryError reports a failed send to one subscriber channel.
type DeliveryError struct {
	SubscriberID string
	Channel      Channel
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: %v", e.Channel, e.SubscriberID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ConfigurationError reports missing or invalid startup configuration.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}
