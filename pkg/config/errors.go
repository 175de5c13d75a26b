package config

// ConfigurationError reports a fatal misconfiguration. No candidate can cause
// one; hosts are expected to abort when they see it.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
