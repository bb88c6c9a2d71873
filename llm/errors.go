package llm

import "fmt"

// NotReadyError reports a generate call against a backend with no usable
// model or client. The batch runner aborts before touching any image.
type NotReadyError struct {
	Backend string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s backend is not ready", e.Backend)
}

// ConfigurationError reports a rejected hosted-backend configuration.
// The backend keeps its previous configuration when this is returned.
type ConfigurationError struct {
	Backend string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("failed to configure %s backend: %s", e.Backend, e.Reason)
}

// LoadError wraps a local model load failure. After a LoadError the
// backend holds no model at all.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load local model: %v", e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UnsupportedArchitectureError reports a load request for a model family
// this build cannot run. No loading work is attempted.
type UnsupportedArchitectureError struct {
	Architecture string
}

func (e *UnsupportedArchitectureError) Error() string {
	return fmt.Sprintf("unsupported model architecture %q", e.Architecture)
}

// ProviderError wraps a per-image transport or model failure. The batch
// runner reports it and continues with the next image.
type ProviderError struct {
	Backend string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
